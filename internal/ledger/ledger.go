// Package ledger answers how many units of a product a user may still place
// in their cart, given what every other cart already holds. It never writes.
package ledger

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

// Reservation is one cart line holding units of a product.
type Reservation struct {
	UserID    string
	SessionID string
	Variant   catalog.VariantKey
	Quantity  int
}

// Reservations lists every cart line for a product, across all carts.
type Reservations interface {
	FindReservations(ctx context.Context, productID string) ([]Reservation, error)
}

type Availability struct {
	Product          *catalog.Product
	OnHand           int
	ReservedByOthers int
	// Held is the acting user's own quantity for the exact product+variant.
	Held int
}

// Available is how many more units the acting user may add. Zero or
// negative means none.
func (a Availability) Available() int {
	return a.OnHand - a.ReservedByOthers - a.Held
}

// Cap is the largest absolute quantity the acting user's line may reach.
func (a Availability) Cap() int {
	return a.OnHand - a.ReservedByOthers
}

// Remaining is Available clamped at zero, for display.
func (a Availability) Remaining() int {
	return max(a.Available(), 0)
}

type Ledger struct {
	catalog catalog.Catalog
	carts   Reservations
}

func New(c catalog.Catalog, carts Reservations) *Ledger {
	return &Ledger{catalog: c, carts: carts}
}

// Available sums every cart line for productID, excluding the acting user's
// own line for the same variant, and subtracts that from on-hand stock.
// userID may be empty (guest); then nothing is excluded.
func (l *Ledger) Available(ctx context.Context, productID, userID string, variant catalog.VariantKey) (Availability, error) {
	p, err := l.catalog.GetProduct(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	if !p.Active() {
		return Availability{}, apperr.Unavailable(p.Name)
	}

	rs, err := l.carts.FindReservations(ctx, productID)
	if err != nil {
		return Availability{}, fmt.Errorf("find reservations: %w", err)
	}

	a := Availability{Product: p, OnHand: p.InventoryQuantity}
	for _, r := range rs {
		if userID != "" && r.UserID == userID && r.Variant == variant {
			a.Held += r.Quantity
			continue
		}
		a.ReservedByOthers += r.Quantity
	}
	return a, nil
}

// CheckAdd rejects adding n more units on top of the user's current hold.
func (a Availability) CheckAdd(n int) error {
	if n <= a.Available() {
		return nil
	}
	return a.insufficient(n, a.Available())
}

// CheckSet rejects setting the user's line to an absolute quantity.
func (a Availability) CheckSet(total int) error {
	if total <= a.Cap() {
		return nil
	}
	return a.insufficient(total, a.Cap())
}

func (a Availability) insufficient(requested, available int) error {
	return &apperr.InsufficientStockError{
		ProductID:        a.Product.ID,
		Requested:        requested,
		Available:        available,
		ReservedByOthers: a.ReservedByOthers,
	}
}
