// Package apperr holds the error taxonomy shared by the stock ledger, cart,
// order and payment services. Callers match with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrProductUnavailable     = errors.New("product unavailable")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrPaymentGateway         = errors.New("payment gateway error")
	ErrConflict               = errors.New("conflict")
	ErrDuplicate              = errors.New("duplicate")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
)

// InsufficientStockError reports a rejected stock request. Available may be
// negative when other carts already hold more than is on hand.
type InsufficientStockError struct {
	ProductID        string
	Requested        int
	Available        int
	ReservedByOthers int
}

func (e *InsufficientStockError) Error() string {
	avail := max(e.Available, 0)
	return fmt.Sprintf("insufficient stock for product %s: requested %d, only %d available (short by %d, %d reserved in other carts)",
		e.ProductID, e.Requested, avail, e.Shortfall(), e.ReservedByOthers)
}

// Shortfall is how many units the request exceeds availability by.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - max(e.Available, 0)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// NotFound wraps ErrNotFound with the kind of thing that was missing.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Invalid wraps ErrInvalidArgument.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// Unavailable names the product that is no longer sellable.
func Unavailable(name string) error {
	return fmt.Errorf("product %s is no longer available: %w", name, ErrProductUnavailable)
}

// Transition reports a status change that the order state machine rejects.
func Transition(from, to string) error {
	return fmt.Errorf("cannot move order from %s to %s: %w", from, to, ErrInvalidStateTransition)
}
