package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
)

type Line struct {
	ProductID string             `json:"product_id"`
	Variant   catalog.VariantKey `json:"variant,omitempty"`
	Quantity  int                `json:"quantity"`
	Price     decimal.Decimal    `json:"price"` // snapshot at add/update time
	AddedAt   time.Time          `json:"added_at"`
}

func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart belongs to exactly one of a user or a guest session.
type Cart struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Lines      []Line          `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Summary struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	HasItems   bool            `json:"has_items"`
}

// Store persists carts. GetCart returns apperr.ErrNotFound when the user has
// no cart yet. FindReservations feeds the stock ledger.
type Store interface {
	ledger.Reservations
	GetCart(ctx context.Context, userID string) (*Cart, error)
	SaveCart(ctx context.Context, c *Cart) error
}

func (c *Cart) find(productID string, v catalog.VariantKey) int {
	for i, l := range c.Lines {
		if l.ProductID == productID && l.Variant == v {
			return i
		}
	}
	return -1
}

// Held is the quantity this cart holds for product+variant.
func (c *Cart) Held(productID string, v catalog.VariantKey) int {
	if i := c.find(productID, v); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

func (c *Cart) remove(productID string, v catalog.VariantKey) bool {
	i := c.find(productID, v)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

// Recalculate refreshes the denormalized aggregates. Every write path calls it.
func (c *Cart) Recalculate() {
	c.TotalItems = 0
	c.TotalPrice = decimal.Zero
	for _, l := range c.Lines {
		c.TotalItems += l.Quantity
		c.TotalPrice = c.TotalPrice.Add(l.Total())
	}
}

func (c *Cart) Clear() {
	c.Lines = []Line{}
	c.Recalculate()
}

func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

func (c *Cart) Summary() Summary {
	return Summary{TotalItems: c.TotalItems, TotalPrice: c.TotalPrice, HasItems: c.TotalItems > 0}
}

// Clone returns a deep copy so stores can hand out carts without aliasing.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	return &cp
}
