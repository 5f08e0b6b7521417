package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/wishlist"
)

type WishlistHandler struct {
	Wishlist *wishlist.Service
}

func (h *WishlistHandler) Register(r chi.Router) {
	r.Get("/wishlist", h.list)
	r.Post("/wishlist/{productID}", h.add)
	r.Delete("/wishlist/{productID}", h.remove)
	r.Delete("/wishlist", h.clear)
	r.Post("/wishlist/{productID}/move-to-cart", h.moveToCart)
}

func (h *WishlistHandler) list(w http.ResponseWriter, r *http.Request) {
	wl, err := h.Wishlist.List(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (h *WishlistHandler) add(w http.ResponseWriter, r *http.Request) {
	wl, err := h.Wishlist.Add(r.Context(), actorOf(r).UserID, chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (h *WishlistHandler) remove(w http.ResponseWriter, r *http.Request) {
	wl, err := h.Wishlist.Remove(r.Context(), actorOf(r).UserID, chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (h *WishlistHandler) clear(w http.ResponseWriter, r *http.Request) {
	wl, err := h.Wishlist.Clear(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (h *WishlistHandler) moveToCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	c, wl, err := h.Wishlist.MoveToCart(r.Context(), actorOf(r).UserID, chi.URLParam(r, "productID"), req.qty(1), req.Variant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c, "wishlist": wl})
}
