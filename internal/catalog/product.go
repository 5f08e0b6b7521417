package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusInactive     Status = "inactive"
	StatusDiscontinued Status = "discontinued"
)

type Product struct {
	ID                string
	SKU               string
	Name              string
	Image             string
	Status            Status
	InventoryQuantity int
	Price             decimal.Decimal
	DiscountedPrice   decimal.NullDecimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (p *Product) Active() bool { return p.Status == StatusActive }

// EffectivePrice is the discounted price when one is set, otherwise the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.DiscountedPrice.Valid && p.DiscountedPrice.Decimal.IsPositive() {
		return p.DiscountedPrice.Decimal
	}
	return p.Price
}

// Catalog owns inventory.quantity. Nothing else may read-modify-write it;
// DecrementInventory must be conditional (never below zero) and atomic.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	DecrementInventory(ctx context.Context, id string, amount int) error
	IncrementInventory(ctx context.Context, id string, amount int) error
}
