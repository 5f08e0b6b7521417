package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

type CatalogStore struct{ DB *pgxpool.Pool }

const productColumns = `id, COALESCE(sku, ''), name, image, status, inventory_quantity, price, discounted_price, created_at, updated_at`

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Image, &p.Status, &p.InventoryQuantity,
		&p.Price, &p.DiscountedPrice, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// DecrementInventory subtracts amount only if enough units are on hand. The
// check and the write are one statement, so concurrent callers can never
// drive the quantity below zero.
func (s *CatalogStore) DecrementInventory(ctx context.Context, id string, amount int) error {
	return decrement(ctx, s.DB, id, amount)
}

func (s *CatalogStore) IncrementInventory(ctx context.Context, id string, amount int) error {
	ct, err := s.DB.Exec(ctx,
		`UPDATE products SET inventory_quantity = inventory_quantity + $2, updated_at = now() WHERE id = $1`,
		id, amount)
	if err != nil {
		return fmt.Errorf("increment inventory %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

// UpsertProduct inserts or replaces a product row.
func (s *CatalogStore) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	var sku any
	if p.SKU != "" {
		sku = p.SKU
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO products (id, sku, name, image, status, inventory_quantity, price, discounted_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku, name = EXCLUDED.name, image = EXCLUDED.image, status = EXCLUDED.status,
			inventory_quantity = EXCLUDED.inventory_quantity, price = EXCLUDED.price,
			discounted_price = EXCLUDED.discounted_price, updated_at = now()`,
		p.ID, sku, p.Name, p.Image, p.Status, p.InventoryQuantity, p.Price, p.DiscountedPrice)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

func decrement(ctx context.Context, q querier, id string, amount int) error {
	ct, err := q.Exec(ctx, `
		UPDATE products
		SET inventory_quantity = inventory_quantity - $2, updated_at = now()
		WHERE id = $1 AND inventory_quantity >= $2`, id, amount)
	if err != nil {
		return fmt.Errorf("decrement inventory %s: %w", id, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	available := 0
	err = q.QueryRow(ctx, `SELECT inventory_quantity FROM products WHERE id = $1`, id).Scan(&available)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("read inventory %s: %w", id, err)
	}
	return fmt.Errorf("%w: %w", apperr.ErrConflict, &apperr.InsufficientStockError{
		ProductID: id, Requested: amount, Available: available,
	})
}
