package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cache"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/telemetry"
)

// Outcomes recorded on shop_payment_outcomes_total.
const (
	OutcomeSucceeded      = "succeeded"
	OutcomeRequiresAction = "requires_action"
	OutcomeFailed         = "failed"
	OutcomeGatewayError   = "gateway_error"
)

type Service struct {
	Gateway  Gateway
	Orders   *orders.Service
	Cache    cache.Cache
	Metrics  *telemetry.Instruments
	Logger   *zap.Logger
	Currency string
	// Timeout bounds every gateway call made while confirming.
	Timeout time.Duration
}

func NewService(gw Gateway, svc *orders.Service, c cache.Cache, currency string, timeout time.Duration, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if currency == "" {
		currency = "usd"
	}
	return &Service{Gateway: gw, Orders: svc, Cache: c, Logger: logger, Currency: currency, Timeout: timeout}
}

// intentRef is cached under payment:{intent_id}.
type intentRef struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// CreateIntent opens a payment intent for the order total and attaches it
// to the order. Only unpaid pending orders qualify.
func (s *Service) CreateIntent(ctx context.Context, actor orders.Actor, orderID string) (*Intent, error) {
	o, err := s.Orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Paid() {
		return nil, apperr.Invalid("order %s is already paid", o.Number)
	}
	if o.Status != orders.StatusPending {
		return nil, apperr.Invalid("order %s is %s and cannot be paid", o.Number, o.Status)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	in, err := s.Gateway.CreateIntent(ctx, o.Summary.Total, s.Currency, map[string]string{
		"order_id":     o.ID,
		"order_number": o.Number,
		"user_id":      o.UserID,
	})
	if err != nil {
		s.Metrics.PaymentOutcome(ctx, OutcomeGatewayError)
		s.Logger.Error("create payment intent", zap.String("order_id", o.ID), zap.Error(err))
		return nil, err
	}
	if _, err := s.Orders.AttachPayment(ctx, o.ID, in.ID); err != nil {
		return nil, err
	}
	ref := intentRef{OrderID: o.ID, UserID: o.UserID, Amount: o.Summary.Total}
	if err := s.Cache.Set(ctx, cache.PaymentKey(in.ID), ref, cache.TTLPayment); err != nil {
		s.Logger.Warn("payment cache set failed", zap.String("intent_id", in.ID), zap.Error(err))
	}
	s.Logger.Info("payment intent created",
		zap.String("order_id", o.ID), zap.String("intent_id", in.ID), zap.String("amount", o.Summary.Total.StringFixed(2)))
	return in, nil
}

type Confirmation struct {
	Order          *orders.Order `json:"order"`
	Status         IntentStatus  `json:"payment_status"`
	RequiresAction bool          `json:"requires_action"`
}

// Confirm asks the gateway for the intent's state and applies it. A
// gateway error or timeout leaves the order untouched; only a succeeded
// intent confirms the order.
func (s *Service) Confirm(ctx context.Context, actor orders.Actor, orderID, intentID string) (*Confirmation, error) {
	o, err := s.Orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if intentID == "" {
		intentID = o.Payment.TransactionID
	}
	if intentID == "" {
		return nil, apperr.Invalid("order %s has no payment intent", o.Number)
	}

	gctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	in, err := s.Gateway.RetrieveIntent(gctx, intentID)
	if err != nil {
		s.Metrics.PaymentOutcome(ctx, OutcomeGatewayError)
		s.Logger.Error("retrieve payment intent",
			zap.String("order_id", orderID), zap.String("intent_id", intentID), zap.Error(err))
		if errors.Is(err, apperr.ErrPaymentGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentGateway, err)
	}
	if id := in.Metadata["order_id"]; id != "" && id != orderID {
		return nil, apperr.Invalid("payment intent %s belongs to another order", intentID)
	}

	switch in.Status {
	case IntentSucceeded:
		o, err = s.Orders.RecordPaymentSuccess(ctx, orderID, intentID, "Payment confirmed")
		if err != nil {
			return nil, err
		}
		s.Metrics.PaymentOutcome(ctx, OutcomeSucceeded)
		s.Logger.Info("payment confirmed", zap.String("order_id", orderID), zap.String("intent_id", intentID))
		return &Confirmation{Order: o, Status: in.Status}, nil
	case IntentRequiresAction:
		s.Metrics.PaymentOutcome(ctx, OutcomeRequiresAction)
		return &Confirmation{Order: o, Status: in.Status, RequiresAction: true}, nil
	default:
		if _, err := s.Orders.RecordPaymentFailure(ctx, orderID); err != nil {
			return nil, err
		}
		s.Metrics.PaymentOutcome(ctx, OutcomeFailed)
		s.Logger.Info("payment not completed",
			zap.String("order_id", orderID), zap.String("intent_id", intentID), zap.String("status", string(in.Status)))
		return nil, fmt.Errorf("intent %s is %s: %w", intentID, in.Status, apperr.ErrPaymentFailed)
	}
}

// HandleEvent applies a gateway webhook event forwarded by the API. The
// order is found by intent id first, then by the order id in the intent
// metadata. Unknown event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, p orders.PaymentEventPayload, eventType string) error {
	o, err := s.Orders.Store.FindByPaymentRef(ctx, p.IntentID)
	if errors.Is(err, apperr.ErrNotFound) && p.OrderID != "" {
		o, err = s.Orders.Store.Get(ctx, p.OrderID)
	}
	if err != nil {
		return fmt.Errorf("payment event %s: %w", p.GatewayEventID, err)
	}

	switch eventType {
	case orders.EventPaymentSucceeded:
		if _, err := s.Orders.RecordPaymentSuccess(ctx, o.ID, p.IntentID, "Payment confirmed by webhook"); err != nil {
			return err
		}
		s.Metrics.PaymentOutcome(ctx, OutcomeSucceeded)
	case orders.EventPaymentFailed:
		if _, err := s.Orders.RecordPaymentFailure(ctx, o.ID); err != nil {
			return err
		}
		s.Metrics.PaymentOutcome(ctx, OutcomeFailed)
	default:
		return nil
	}
	s.Logger.Info("payment event applied",
		zap.String("event_id", p.GatewayEventID), zap.String("event_type", eventType), zap.String("order_id", o.ID))
	return nil
}

// EventType maps a gateway webhook type to the order event type, or "".
func EventType(webhookType string) string {
	switch webhookType {
	case WebhookSucceeded:
		return orders.EventPaymentSucceeded
	case WebhookFailed:
		return orders.EventPaymentFailed
	}
	return ""
}

// Refund calls the gateway first and records the refund locally only after
// it is accepted, so a gateway failure leaves the order exactly as it was.
// A zero amount refunds the order total.
func (s *Service) Refund(ctx context.Context, actor orders.Actor, orderID string, amount decimal.Decimal, reason string) (*orders.Order, error) {
	o, err := s.Orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if err := orders.CheckRefundable(o); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		amount = o.Summary.Total
	}
	if amount.IsNegative() || amount.GreaterThan(o.Summary.Total) {
		return nil, apperr.Invalid("refund amount must be between 0 and %s", o.Summary.Total.StringFixed(2))
	}
	if reason == "" {
		reason = "Customer requested refund"
	}

	gctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	refundID, err := s.Gateway.Refund(gctx, o.Payment.TransactionID, amount, reason)
	if err != nil {
		s.Logger.Error("refund rejected by gateway", zap.String("order_id", orderID), zap.Error(err))
		if errors.Is(err, apperr.ErrPaymentGateway) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrPaymentGateway, err)
	}

	o, err = s.Orders.RecordRefund(ctx, orderID, orders.Refund{RefundID: refundID, Amount: amount, Reason: reason})
	if err != nil {
		s.Logger.Error("refund accepted by gateway but not recorded",
			zap.String("order_id", orderID), zap.String("refund_id", refundID), zap.Error(err))
		return nil, err
	}
	s.Logger.Info("order refunded",
		zap.String("order_id", orderID), zap.String("refund_id", refundID), zap.String("amount", amount.StringFixed(2)))
	return o, nil
}
