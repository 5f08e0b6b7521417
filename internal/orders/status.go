package orders

import "github.com/ariefcatur/go-storefront-orders/internal/apperr"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true, StatusReturned: true},
	StatusProcessing: {StatusShipped: true, StatusReturned: true},
	StatusShipped:    {StatusDelivered: true, StatusReturned: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusReturned:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// Cancellable reports whether the owner or an admin may still cancel.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// restocks reports whether entering s puts the ordered units back on hand.
func (s Status) restocks() bool {
	return s == StatusCancelled || s == StatusReturned
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", apperr.Invalid("unknown order status %q", v)
	}
	return s, nil
}

// InFlight are the non-terminal statuses the progression sweep looks at.
var InFlight = []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped}
