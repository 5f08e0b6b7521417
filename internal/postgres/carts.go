package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
)

type CartStore struct{ DB *pgxpool.Pool }

func (s *CartStore) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := s.DB.QueryRow(ctx, `
		SELECT id, COALESCE(user_id, ''), COALESCE(session_id, ''), total_items, total_price, updated_at
		FROM carts WHERE user_id = $1`, userID).
		Scan(&c.ID, &c.UserID, &c.SessionID, &c.TotalItems, &c.TotalPrice, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("cart", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	rows, err := s.DB.Query(ctx, `
		SELECT product_id, variant, quantity, price, added_at
		FROM cart_lines WHERE cart_id = $1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart lines: %w", err)
	}
	defer rows.Close()
	c.Lines = []cart.Line{}
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ProductID, &l.Variant, &l.Quantity, &l.Price, &l.AddedAt); err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, l)
	}
	return &c, rows.Err()
}

// SaveCart replaces the cart row and all of its lines in one transaction.
func (s *CartStore) SaveCart(ctx context.Context, c *cart.Cart) error {
	return inTx(ctx, s.DB, func(tx pgx.Tx) error {
		var userID, sessionID any
		if c.UserID != "" {
			userID = c.UserID
		}
		if c.SessionID != "" {
			sessionID = c.SessionID
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO carts (id, user_id, session_id, total_items, total_price, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				total_items = EXCLUDED.total_items, total_price = EXCLUDED.total_price,
				updated_at = EXCLUDED.updated_at`,
			c.ID, userID, sessionID, c.TotalItems, c.TotalPrice, c.UpdatedAt); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, c.ID); err != nil {
			return fmt.Errorf("clear cart lines: %w", err)
		}
		if len(c.Lines) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, l := range c.Lines {
			batch.Queue(`
				INSERT INTO cart_lines (cart_id, product_id, variant, quantity, price, added_at, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				c.ID, l.ProductID, l.Variant, l.Quantity, l.Price, l.AddedAt, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("save cart lines: %w", err)
		}
		return nil
	})
}

// FindReservations lists every line of productID in every cart, user and
// guest alike.
func (s *CartStore) FindReservations(ctx context.Context, productID string) ([]ledger.Reservation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT COALESCE(c.user_id, ''), COALESCE(c.session_id, ''), l.variant, l.quantity
		FROM cart_lines l JOIN carts c ON c.id = l.cart_id
		WHERE l.product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("find reservations: %w", err)
	}
	defer rows.Close()
	var out []ledger.Reservation
	for rows.Next() {
		var r ledger.Reservation
		if err := rows.Scan(&r.UserID, &r.SessionID, &r.Variant, &r.Quantity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// clearCart empties the user's cart inside an order transaction.
func clearCart(ctx context.Context, q querier, userID string) error {
	if _, err := q.Exec(ctx, `
		DELETE FROM cart_lines WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)`, userID); err != nil {
		return fmt.Errorf("clear cart lines: %w", err)
	}
	if _, err := q.Exec(ctx, `
		UPDATE carts SET total_items = 0, total_price = 0, updated_at = now() WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("reset cart totals: %w", err)
	}
	return nil
}
