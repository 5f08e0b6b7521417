package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type OrderStore struct{ DB *pgxpool.Pool }

const orderNumberConstraint = "orders_order_number_key"

const orderColumns = `id, order_number, user_id, status,
	subtotal, tax, shipping, discount, total,
	shipping_address, billing_address,
	payment_method, payment_transaction_id, payment_status, paid_at,
	refund_status, refund_id, refund_amount, refund_reason, refunded_at,
	cancellation, notes, delivered_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.Status,
		&o.Summary.Subtotal, &o.Summary.Tax, &o.Summary.Shipping, &o.Summary.Discount, &o.Summary.Total,
		&o.ShippingAddress, &o.BillingAddress,
		&o.Payment.Method, &o.Payment.TransactionID, &o.Payment.Status, &o.Payment.PaidAt,
		&o.Refund.Status, &o.Refund.RefundID, &o.Refund.Amount, &o.Refund.Reason, &o.Refund.ProcessedAt,
		&o.Cancellation, &o.Notes, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// hydrate loads lines and history for o.
func hydrate(ctx context.Context, q querier, o *orders.Order) error {
	rows, err := q.Query(ctx, `
		SELECT product_id, product_name, product_image, variant, quantity, price
		FROM order_lines WHERE order_id = $1 ORDER BY line_no`, o.ID)
	if err != nil {
		return fmt.Errorf("order lines: %w", err)
	}
	o.Lines = []orders.Line{}
	for rows.Next() {
		var l orders.Line
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Image, &l.Variant, &l.Quantity, &l.Price); err != nil {
			rows.Close()
			return err
		}
		o.Lines = append(o.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
		SELECT status, note, at FROM order_status_history WHERE order_id = $1 ORDER BY seq`, o.ID)
	if err != nil {
		return fmt.Errorf("order history: %w", err)
	}
	defer rows.Close()
	o.History = []orders.HistoryEntry{}
	for rows.Next() {
		var h orders.HistoryEntry
		if err := rows.Scan(&h.Status, &h.Note, &h.At); err != nil {
			return err
		}
		o.History = append(o.History, h)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, where string, arg any) (*orders.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	if err := hydrate(ctx, q, o); err != nil {
		return nil, err
	}
	return o, nil
}

func insertHistory(ctx context.Context, q querier, orderID string, from int, entries []orders.HistoryEntry) error {
	for i, h := range entries {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_status_history (order_id, seq, status, note, at) VALUES ($1, $2, $3, $4, $5)`,
			orderID, from+i, h.Status, h.Note, h.At); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

// Commit decrements inventory for every line, inserts the order and clears
// the owner's cart in one transaction. Any failure rolls all of it back.
func (s *OrderStore) Commit(ctx context.Context, o *orders.Order) error {
	return inTx(ctx, s.DB, func(tx pgx.Tx) error {
		need := make(map[string]int, len(o.Lines))
		var ids []string
		for _, l := range o.Lines {
			if _, seen := need[l.ProductID]; !seen {
				ids = append(ids, l.ProductID)
			}
			need[l.ProductID] += l.Quantity
		}
		// Fixed order keeps concurrent commits from deadlocking on row locks.
		slices.Sort(ids)
		for _, id := range ids {
			if err := decrement(ctx, tx, id, need[id]); err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
			o.ID, o.Number, o.UserID, o.Status,
			o.Summary.Subtotal, o.Summary.Tax, o.Summary.Shipping, o.Summary.Discount, o.Summary.Total,
			o.ShippingAddress, o.BillingAddress,
			o.Payment.Method, o.Payment.TransactionID, o.Payment.Status, o.Payment.PaidAt,
			o.Refund.Status, o.Refund.RefundID, o.Refund.Amount, o.Refund.Reason, o.Refund.ProcessedAt,
			o.Cancellation, o.Notes, o.DeliveredAt, o.CreatedAt, o.UpdatedAt)
		if uniqueViolation(err, orderNumberConstraint) {
			return fmt.Errorf("order number %s: %w", o.Number, apperr.ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, l := range o.Lines {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_lines (order_id, line_no, product_id, product_name, product_image, variant, quantity, price)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				o.ID, i, l.ProductID, l.Name, l.Image, l.Variant, l.Quantity, l.Price); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}
		if err := insertHistory(ctx, tx, o.ID, 0, o.History); err != nil {
			return err
		}
		return clearCart(ctx, tx, o.UserID)
	})
}

func (s *OrderStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	o, err := getOrder(ctx, s.DB, `id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	return o, err
}

func (s *OrderStore) FindByPaymentRef(ctx context.Context, transactionID string) (*orders.Order, error) {
	if transactionID == "" {
		return nil, apperr.NotFound("order with payment", transactionID)
	}
	o, err := getOrder(ctx, s.DB, `payment_transaction_id = $1`, transactionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order with payment", transactionID)
	}
	return o, err
}

func (s *OrderStore) collect(ctx context.Context, rows pgx.Rows) ([]orders.Order, error) {
	var list []*orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]orders.Order, 0, len(list))
	for _, o := range list {
		if err := hydrate(ctx, s.DB, o); err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, nil
}

func (s *OrderStore) List(ctx context.Context, q orders.Query) ([]orders.Order, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
		SELECT count(*) FROM orders WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)`,
		q.UserID, string(q.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, q.UserID, string(q.Status), limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	out, err := s.collect(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *OrderStore) ListByStatus(ctx context.Context, statuses []orders.Status) ([]orders.Order, error) {
	vals := make([]string, len(statuses))
	for i, st := range statuses {
		vals[i] = string(st)
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE status = ANY($1) ORDER BY created_at`, vals)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	return s.collect(ctx, rows)
}

// Update locks the order row, applies fn, and writes the order, the new
// history entries and any inventory restore in the same transaction. Two
// concurrent cancellations serialize on the lock; the second sees the
// cancelled status and fn rejects it, so stock is restored once.
func (s *OrderStore) Update(ctx context.Context, id string, fn func(o *orders.Order) (orders.Effect, error)) (*orders.Order, error) {
	var out *orders.Order
	err := inTx(ctx, s.DB, func(tx pgx.Tx) error {
		o, err := getOrder(ctx, tx, `id = $1 FOR UPDATE`, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("order", id)
		}
		if err != nil {
			return err
		}
		stored := len(o.History)
		effect, err := fn(o)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE orders SET
				status = $2,
				payment_transaction_id = $3, payment_status = $4, paid_at = $5,
				refund_status = $6, refund_id = $7, refund_amount = $8, refund_reason = $9, refunded_at = $10,
				cancellation = $11, delivered_at = $12, updated_at = $13
			WHERE id = $1`,
			o.ID, o.Status,
			o.Payment.TransactionID, o.Payment.Status, o.Payment.PaidAt,
			o.Refund.Status, o.Refund.RefundID, o.Refund.Amount, o.Refund.Reason, o.Refund.ProcessedAt,
			o.Cancellation, o.DeliveredAt, o.UpdatedAt); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := insertHistory(ctx, tx, o.ID, stored, o.History[stored:]); err != nil {
			return err
		}
		if effect.RestoreInventory {
			for _, l := range o.Lines {
				// A product deleted since the order was placed has nothing to restock.
				if _, err := tx.Exec(ctx, `
					UPDATE products SET inventory_quantity = inventory_quantity + $2, updated_at = now()
					WHERE id = $1`, l.ProductID, l.Quantity); err != nil {
					return fmt.Errorf("restore inventory %s: %w", l.ProductID, err)
				}
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
