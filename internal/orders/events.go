package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderRefunded      = "OrderRefunded"
	EventPaymentSucceeded   = "PaymentSucceeded"
	EventPaymentFailed      = "PaymentFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type LineQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Items       []LineQty       `json:"items"`
	Total       decimal.Decimal `json:"total"`
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Note    string `json:"note,omitempty"`
	// Restocked lists units returned to inventory by this change.
	Restocked []LineQty `json:"restocked,omitempty"`
}

type RefundedPayload struct {
	OrderID  string          `json:"order_id"`
	RefundID string          `json:"refund_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// PaymentEventPayload is what the API forwards from the gateway webhook to
// the worker.
type PaymentEventPayload struct {
	GatewayEventID string `json:"gateway_event_id"`
	IntentID       string `json:"intent_id"`
	OrderID        string `json:"order_id,omitempty"`
}

func lineQtys(lines []Line) []LineQty {
	out := make([]LineQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineQty{ProductID: l.ProductID, Qty: l.Quantity})
	}
	return out
}
