package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/wishlist"
)

type WishlistStore struct{ DB *pgxpool.Pool }

func (s *WishlistStore) GetWishlist(ctx context.Context, userID string) (*wishlist.Wishlist, error) {
	var w wishlist.Wishlist
	err := s.DB.QueryRow(ctx, `SELECT id, user_id, updated_at FROM wishlists WHERE user_id = $1`, userID).
		Scan(&w.ID, &w.UserID, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("wishlist", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("get wishlist: %w", err)
	}
	rows, err := s.DB.Query(ctx,
		`SELECT product_id, added_at FROM wishlist_items WHERE wishlist_id = $1 ORDER BY added_at`, w.ID)
	if err != nil {
		return nil, fmt.Errorf("get wishlist items: %w", err)
	}
	defer rows.Close()
	w.Items = []wishlist.Item{}
	for rows.Next() {
		var it wishlist.Item
		if err := rows.Scan(&it.ProductID, &it.AddedAt); err != nil {
			return nil, err
		}
		w.Items = append(w.Items, it)
	}
	return &w, rows.Err()
}

func (s *WishlistStore) SaveWishlist(ctx context.Context, w *wishlist.Wishlist) error {
	return inTx(ctx, s.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO wishlists (id, user_id, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
			w.ID, w.UserID, w.UpdatedAt); err != nil {
			return fmt.Errorf("save wishlist: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM wishlist_items WHERE wishlist_id = $1`, w.ID); err != nil {
			return fmt.Errorf("clear wishlist items: %w", err)
		}
		for _, it := range w.Items {
			if _, err := tx.Exec(ctx,
				`INSERT INTO wishlist_items (wishlist_id, product_id, added_at) VALUES ($1, $2, $3)`,
				w.ID, it.ProductID, it.AddedAt); err != nil {
				return fmt.Errorf("save wishlist item: %w", err)
			}
		}
		return nil
	})
}
