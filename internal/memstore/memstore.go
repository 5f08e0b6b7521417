// Package memstore is an in-process implementation of every storage port.
// One mutex guards all maps, so each multi-entity operation (order commit,
// order update with restock) is applied as one unit. Used by tests and by
// the API when no Postgres DSN is configured.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/ledger"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/wishlist"
)

type Store struct {
	mu        sync.Mutex
	products  map[string]*catalog.Product
	carts     map[string]*cart.Cart // by user id
	sessions  map[string]*cart.Cart // guest carts by session id
	wishlists map[string]*wishlist.Wishlist
	orders    map[string]*orders.Order
	numbers   map[string]string // order number -> id
}

func New() *Store {
	return &Store{
		products:  make(map[string]*catalog.Product),
		carts:     make(map[string]*cart.Cart),
		sessions:  make(map[string]*cart.Cart),
		wishlists: make(map[string]*wishlist.Wishlist),
		orders:    make(map[string]*orders.Order),
		numbers:   make(map[string]string),
	}
}

// SeedProduct inserts or replaces a product.
func (s *Store) SeedProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Status == "" {
		p.Status = catalog.StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products[p.ID] = &p
}

// SeedSessionCart stores a guest cart. Guest carts cannot be mutated
// through the cart service but their lines still reserve stock.
func (s *Store) SeedSessionCart(c *cart.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Recalculate()
	s.sessions[c.SessionID] = c.Clone()
}

// SeedOrder stores an order as-is, bypassing inventory.
func (s *Store) SeedOrder(o *orders.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o.Clone()
	s.numbers[o.Number] = o.ID
}

// catalog.Catalog

func (s *Store) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) DecrementInventory(_ context.Context, id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrement(id, amount)
}

func (s *Store) IncrementInventory(_ context.Context, id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return apperr.NotFound("product", id)
	}
	p.InventoryQuantity += amount
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) decrement(id string, amount int) error {
	p, ok := s.products[id]
	if !ok || p.InventoryQuantity < amount {
		available := 0
		if ok {
			available = p.InventoryQuantity
		}
		return fmt.Errorf("%w: %w", apperr.ErrConflict, &apperr.InsufficientStockError{
			ProductID: id, Requested: amount, Available: available,
		})
	}
	p.InventoryQuantity -= amount
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// cart.Store

func (s *Store) GetCart(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil, apperr.NotFound("cart", userID)
	}
	return c.Clone(), nil
}

func (s *Store) SaveCart(_ context.Context, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.UserID] = c.Clone()
	return nil
}

func (s *Store) FindReservations(_ context.Context, productID string) ([]ledger.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.Reservation
	collect := func(c *cart.Cart) {
		for _, l := range c.Lines {
			if l.ProductID == productID {
				out = append(out, ledger.Reservation{
					UserID:    c.UserID,
					SessionID: c.SessionID,
					Variant:   l.Variant,
					Quantity:  l.Quantity,
				})
			}
		}
	}
	for _, c := range s.carts {
		collect(c)
	}
	for _, c := range s.sessions {
		collect(c)
	}
	return out, nil
}

// wishlist.Store

func (s *Store) GetWishlist(_ context.Context, userID string) (*wishlist.Wishlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wishlists[userID]
	if !ok {
		return nil, apperr.NotFound("wishlist", userID)
	}
	return w.Clone(), nil
}

func (s *Store) SaveWishlist(_ context.Context, w *wishlist.Wishlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wishlists[w.UserID] = w.Clone()
	return nil
}

// orders.Store

func (s *Store) Commit(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.numbers[o.Number]; taken {
		return fmt.Errorf("order number %s: %w", o.Number, apperr.ErrDuplicate)
	}

	// Check everything first so a rejection leaves inventory untouched.
	need := make(map[string]int, len(o.Lines))
	for _, l := range o.Lines {
		need[l.ProductID] += l.Quantity
	}
	for id, qty := range need {
		p, ok := s.products[id]
		if !ok || p.InventoryQuantity < qty {
			available := 0
			if ok {
				available = p.InventoryQuantity
			}
			return fmt.Errorf("%w: %w", apperr.ErrConflict, &apperr.InsufficientStockError{
				ProductID: id, Requested: qty, Available: available,
			})
		}
	}
	for id, qty := range need {
		if err := s.decrement(id, qty); err != nil {
			return err
		}
	}

	s.orders[o.ID] = o.Clone()
	s.numbers[o.Number] = o.ID
	if c, ok := s.carts[o.UserID]; ok {
		c.Clear()
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return o.Clone(), nil
}

func (s *Store) FindByPaymentRef(_ context.Context, transactionID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if transactionID != "" && o.Payment.TransactionID == transactionID {
			return o.Clone(), nil
		}
	}
	return nil, apperr.NotFound("order with payment", transactionID)
}

func (s *Store) List(_ context.Context, q orders.Query) ([]orders.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []orders.Order
	for _, o := range s.orders {
		if q.UserID != "" && o.UserID != q.UserID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		matched = append(matched, *o.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if q.Offset >= total {
		return []orders.Order{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], total, nil
}

func (s *Store) ListByStatus(_ context.Context, statuses []orders.Status) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[orders.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []orders.Order
	for _, o := range s.orders {
		if want[o.Status] {
			out = append(out, *o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Update(_ context.Context, id string, fn func(o *orders.Order) (orders.Effect, error)) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	next := cur.Clone()
	effect, err := fn(next)
	if err != nil {
		return nil, err
	}
	if effect.RestoreInventory {
		for _, l := range next.Lines {
			// A product deleted since the order was placed has nothing to restock.
			if p, ok := s.products[l.ProductID]; ok {
				p.InventoryQuantity += l.Quantity
				p.UpdatedAt = time.Now().UTC()
			}
		}
	}
	s.orders[id] = next
	return next.Clone(), nil
}
