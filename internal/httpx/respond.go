package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	// Stock details, present for insufficient stock.
	ProductID        string `json:"product_id,omitempty"`
	Requested        int    `json:"requested,omitempty"`
	Available        *int   `json:"available,omitempty"`
	ReservedByOthers int    `json:"reserved_by_others,omitempty"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInsufficientStock),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrInvalidStateTransition),
		errors.Is(err, apperr.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidArgument),
		errors.Is(err, apperr.ErrEmptyCart),
		errors.Is(err, apperr.ErrProductUnavailable),
		errors.Is(err, apperr.ErrPaymentFailed):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrPaymentGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	body := errorBody{Error: err.Error()}
	if code == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	var se *apperr.InsufficientStockError
	if errors.As(err, &se) {
		avail := max(se.Available, 0)
		body.ProductID = se.ProductID
		body.Requested = se.Requested
		body.Available = &avail
		body.ReservedByOthers = se.ReservedByOthers
	}
	writeJSON(w, code, body)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("invalid json: %v", err)
	}
	return nil
}

// Identity headers are set by the gateway in front of this service after it
// has authenticated the caller.
// Guest sessions carry no identity here; cart mutations need a user.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

func actorOf(r *http.Request) orders.Actor {
	return orders.Actor{
		UserID: r.Header.Get(HeaderUserID),
		Admin:  r.Header.Get(HeaderUserRole) == "admin",
	}
}
