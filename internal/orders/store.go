package orders

import "context"

// Effect tells Store.Update what else belongs to the same unit of work.
type Effect struct {
	// RestoreInventory increments every line's product by its quantity.
	RestoreInventory bool
}

type Query struct {
	UserID string
	Status Status // optional
	Offset int
	Limit  int
}

type Store interface {
	// Commit creates the order as one unit of work: a conditional decrement
	// of inventory for each line (never below zero), the order insert, and
	// clearing the owner's cart. A rejected decrement returns an error
	// matching apperr.ErrConflict and apperr.ErrInsufficientStock and nothing
	// is applied. A taken order number returns apperr.ErrDuplicate.
	Commit(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindByPaymentRef(ctx context.Context, transactionID string) (*Order, error)
	List(ctx context.Context, q Query) ([]Order, int, error)
	ListByStatus(ctx context.Context, statuses []Status) ([]Order, error)
	// Update locks the order, lets fn mutate it, then persists the order and
	// the requested Effect together. An error from fn aborts with no change.
	Update(ctx context.Context, id string, fn func(o *Order) (Effect, error)) (*Order, error)
}
