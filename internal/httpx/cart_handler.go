package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

type CartHandler struct {
	Carts *cart.Service
}

type cartItemReq struct {
	ProductID string          `json:"product_id"`
	Quantity  *int            `json:"quantity,omitempty"`
	Variant   catalog.Variant `json:"variant,omitempty"`
}

// qty returns the requested quantity, or def when the field was omitted.
// An explicit zero is passed through for the service to judge.
func (q cartItemReq) qty(def int) int {
	if q.Quantity == nil {
		return def
	}
	return *q.Quantity
}

type availabilityResp struct {
	ProductID        string `json:"product_id"`
	OnHand           int    `json:"on_hand"`
	ReservedByOthers int    `json:"reserved_by_others"`
	InYourCart       int    `json:"in_your_cart"`
	Available        int    `json:"available"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.get)
	r.Get("/cart/summary", h.summary)
	r.Post("/cart/items", h.add)
	r.Put("/cart/items/{productID}", h.update)
	r.Delete("/cart/items/{productID}", h.remove)
	r.Post("/cart/sync", h.sync)
	r.Delete("/cart", h.clear)
	r.Get("/products/{productID}/availability", h.availability)
}

// variantParam reads the canonical variant key from ?variant=. The key is
// query-escaped as a whole, so "color=red;size=m" travels as
// color%3Dred%3Bsize%3Dm and a value holding ";" (already %3B inside the
// key) as %253B.
func variantParam(r *http.Request) catalog.Variant {
	return catalog.VariantKey(r.URL.Query().Get("variant")).Variant()
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Carts.Summary(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.Carts.AddItem(r.Context(), actorOf(r).UserID, req.ProductID, req.qty(1), req.Variant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, apperr.Invalid("quantity is required"))
		return
	}
	c, err := h.Carts.UpdateItemQuantity(r.Context(), actorOf(r).UserID, chi.URLParam(r, "productID"), *req.Quantity, req.Variant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.RemoveItem(r.Context(), actorOf(r).UserID, chi.URLParam(r, "productID"), variantParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) sync(w http.ResponseWriter, r *http.Request) {
	c, changed, err := h.Carts.Sync(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": c, "changed": changed})
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Clear(r.Context(), actorOf(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) availability(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	a, err := h.Carts.Ledger.Available(r.Context(), productID, actorOf(r).UserID, variantParam(r).Key())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResp{
		ProductID:        productID,
		OnHand:           a.OnHand,
		ReservedByOthers: a.ReservedByOthers,
		InYourCart:       a.Held,
		Available:        a.Remaining(),
	})
}
