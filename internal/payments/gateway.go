package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

type IntentStatus string

const (
	IntentSucceeded             IntentStatus = "succeeded"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentProcessing            IntentStatus = "processing"
	IntentCanceled              IntentStatus = "canceled"
)

type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret,omitempty"`
	Status       IntentStatus      `json:"status"`
	Amount       decimal.Decimal   `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Webhook event types the service reacts to.
const (
	WebhookSucceeded = "payment_intent.succeeded"
	WebhookFailed    = "payment_intent.payment_failed"
)

// Event is a verified gateway webhook notification.
type Event struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IntentID string `json:"intent_id"`
	OrderID  string `json:"order_id,omitempty"`
}

// Gateway is the external payment provider. Implementations wrap transport
// and provider failures in apperr.ErrPaymentGateway.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	// Refund returns the provider's refund id.
	Refund(ctx context.Context, intentID string, amount decimal.Decimal, reason string) (string, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// toMinor converts an amount to the smallest currency unit.
func toMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
