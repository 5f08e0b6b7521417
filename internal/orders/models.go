package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

// Line is frozen at order time and does not follow later catalog edits.
type Line struct {
	ProductID string             `json:"product_id"`
	Name      string             `json:"product_name"`
	Image     string             `json:"product_image,omitempty"`
	Variant   catalog.VariantKey `json:"variant,omitempty"`
	Quantity  int                `json:"quantity"`
	Price     decimal.Decimal    `json:"price"`
}

type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Consistent checks total = subtotal + tax + shipping - discount.
func (s Summary) Consistent() bool {
	return s.Total.Equal(s.Subtotal.Add(s.Tax).Add(s.Shipping).Sub(s.Discount))
}

type HistoryEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"timestamp"`
	Note   string    `json:"note,omitempty"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Payment struct {
	Method        string        `json:"method"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Status        PaymentStatus `json:"payment_status"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
}

type RefundStatus string

const (
	RefundNone      RefundStatus = ""
	RefundCompleted RefundStatus = "completed"
)

type Refund struct {
	Status      RefundStatus    `json:"status,omitempty"`
	RefundID    string          `json:"refund_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

type Cancellation struct {
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
	CancelledBy string    `json:"cancelled_by"`
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) Validate() error {
	if a.Line1 == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return apperr.Invalid("shipping address needs line1, city, postal_code and country")
	}
	return nil
}

type Order struct {
	ID              string         `json:"id"`
	Number          string         `json:"order_number"`
	UserID          string         `json:"user_id"`
	Lines           []Line         `json:"items"`
	Summary         Summary        `json:"order_summary"`
	Status          Status         `json:"status"`
	History         []HistoryEntry `json:"status_history"`
	ShippingAddress Address        `json:"shipping_address"`
	BillingAddress  Address        `json:"billing_address"`
	Payment         Payment        `json:"payment_info"`
	Refund          Refund         `json:"refund"`
	Cancellation    *Cancellation  `json:"cancellation,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Transition moves the order to a new status and appends the history entry
// in the same step; callers persist both together.
func (o *Order) Transition(to Status, note string, at time.Time) error {
	if !CanTransition(o.Status, to) {
		return apperr.Transition(string(o.Status), string(to))
	}
	o.Status = to
	o.History = append(o.History, HistoryEntry{Status: to, At: at, Note: note})
	o.UpdatedAt = at
	if to == StatusDelivered {
		o.DeliveredAt = &at
	}
	return nil
}

func (o *Order) Paid() bool { return o.Payment.Status == PaymentCompleted }

func (o *Order) Units() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// Clone returns a deep copy so stores and caches never share slices.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	cp.History = append([]HistoryEntry(nil), o.History...)
	if o.Cancellation != nil {
		c := *o.Cancellation
		cp.Cancellation = &c
	}
	return &cp
}

// Actor is the caller on whose behalf an order operation runs.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) CanAccess(o *Order) bool {
	return a.Admin || (a.UserID != "" && a.UserID == o.UserID)
}

func (a Actor) Label() string {
	if a.Admin {
		return "admin"
	}
	return "customer"
}
