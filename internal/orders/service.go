package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/cache"
	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/telemetry"
)

const numberAttempts = 3

var tracer = otel.Tracer("github.com/ariefcatur/go-storefront-orders/internal/orders")

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Store     Store
	Carts     cart.Store
	Catalog   catalog.Catalog
	Pricing   Pricing
	Cache     cache.Cache
	Events    Publisher // optional
	Metrics   *telemetry.Instruments
	Logger    *zap.Logger
	Producer  string
	NewNumber func(time.Time) string
	Now       func() time.Time
}

func NewService(store Store, carts cart.Store, cat catalog.Catalog, pricing Pricing, c cache.Cache, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:     store,
		Carts:     carts,
		Catalog:   cat,
		Pricing:   pricing,
		Cache:     c,
		Logger:    logger,
		Producer:  "order-api",
		NewNumber: NewNumber,
		Now:       time.Now,
	}
}

type CreateInput struct {
	ShippingAddress Address  `json:"shipping_address"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
	PaymentMethod   string   `json:"payment_method,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// CreateOrder turns the user's cart into a pending order. Validation runs
// before any write; the inventory decrement, order insert and cart clear
// are committed together by the store.
func (s *Service) CreateOrder(ctx context.Context, userID string, in CreateInput) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.CreateOrder", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	if userID == "" {
		return nil, fail(span, fmt.Errorf("create order: %w", apperr.ErrUnauthorized))
	}
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, fail(span, err)
	}

	c, err := s.Carts.GetCart(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && c.Empty()) {
		return nil, fail(span, apperr.ErrEmptyCart)
	}
	if err != nil {
		return nil, fail(span, err)
	}

	lines := make([]Line, 0, len(c.Lines))
	for _, cl := range c.Lines {
		p, err := s.Catalog.GetProduct(ctx, cl.ProductID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fail(span, apperr.Unavailable(cl.ProductID))
		}
		if err != nil {
			return nil, fail(span, err)
		}
		if !p.Active() {
			return nil, fail(span, apperr.Unavailable(p.Name))
		}
		if cl.Quantity > p.InventoryQuantity {
			s.Metrics.StockRejected(ctx, "order")
			return nil, fail(span, &apperr.InsufficientStockError{
				ProductID: p.ID,
				Requested: cl.Quantity,
				Available: p.InventoryQuantity,
			})
		}
		lines = append(lines, Line{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			Variant:   cl.Variant,
			Quantity:  cl.Quantity,
			Price:     cl.Price,
		})
	}

	now := s.Now().UTC()
	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}
	method := in.PaymentMethod
	if method == "" {
		method = "stripe"
	}
	o := &Order{
		ID:              uuid.NewString(),
		UserID:          userID,
		Lines:           lines,
		Summary:         s.Pricing.Summarize(Subtotal(lines), decimal.Zero),
		Status:          StatusPending,
		History:         []HistoryEntry{{Status: StatusPending, At: now, Note: "Order placed"}},
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billing,
		Payment:         Payment{Method: method, Status: PaymentPending},
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; ; attempt++ {
		o.Number = s.NewNumber(now)
		err = s.Store.Commit(ctx, o)
		if err == nil {
			break
		}
		if errors.Is(err, apperr.ErrDuplicate) && attempt < numberAttempts {
			s.Logger.Warn("order number collision, regenerating", zap.String("order_number", o.Number))
			continue
		}
		if errors.Is(err, apperr.ErrInsufficientStock) {
			s.Metrics.StockRejected(ctx, "order")
		}
		return nil, fail(span, fmt.Errorf("commit order: %w", err))
	}

	if err := s.Cache.Del(ctx, cache.CartKey(userID), cache.CartSummaryKey(userID)); err != nil {
		s.Logger.Warn("cart cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.Metrics.OrderCreated(ctx)
	s.publish(o.ID, EventOrderCreated, OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Items:       lineQtys(o.Lines),
		Total:       o.Summary.Total,
	})
	span.SetAttributes(attribute.String("order_id", o.ID), attribute.String("order_number", o.Number))
	s.Logger.Info("order created",
		zap.String("order_id", o.ID), zap.String("order_number", o.Number),
		zap.String("user_id", userID), zap.String("total", o.Summary.Total.StringFixed(2)))
	return o, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Order, error) {
	var o *Order
	var cached Order
	if ok, err := s.Cache.Get(ctx, cache.OrderKey(id), &cached); err == nil && ok {
		o = &cached
	} else {
		o, err = s.Store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.Cache.Set(ctx, cache.OrderKey(id), o, cache.TTLOrder); err != nil {
			s.Logger.Warn("order cache set failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	if !actor.CanAccess(o) {
		return nil, apperr.ErrForbidden
	}
	return o, nil
}

// List returns the owner's orders, newest first. Admins may list any owner.
func (s *Service) List(ctx context.Context, actor Actor, q Query) ([]Order, int, error) {
	if q.UserID == "" {
		q.UserID = actor.UserID
	}
	if q.UserID != actor.UserID && !actor.Admin {
		return nil, 0, apperr.ErrForbidden
	}
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return s.Store.List(ctx, q)
}

// change runs fn under the store's lock and takes care of everything that
// follows a successful update: cache, events, metrics, logs.
func (s *Service) change(ctx context.Context, id string, fn func(o *Order) (Effect, error)) (*Order, error) {
	var (
		from   Status
		effect Effect
	)
	o, err := s.Store.Update(ctx, id, func(o *Order) (Effect, error) {
		from = o.Status
		e, err := fn(o)
		effect = e
		return e, err
	})
	if err != nil {
		return nil, err
	}

	if err := s.Cache.Del(ctx, cache.OrderKey(id)); err != nil {
		s.Logger.Warn("order cache invalidation failed", zap.String("order_id", id), zap.Error(err))
	}
	if o.Status != from {
		s.Metrics.StatusTransition(ctx, string(o.Status))
		note := ""
		if n := len(o.History); n > 0 {
			note = o.History[n-1].Note
		}
		p := StatusChangedPayload{OrderID: o.ID, UserID: o.UserID, From: from, To: o.Status, Note: note}
		if effect.RestoreInventory {
			p.Restocked = lineQtys(o.Lines)
		}
		// A cancellation is announced once, as OrderCancelled.
		event := EventOrderStatusChanged
		if o.Status == StatusCancelled {
			event = EventOrderCancelled
			if o.Cancellation != nil {
				p.Note = o.Cancellation.Reason
			}
		}
		s.publish(o.ID, event, p)
		s.Logger.Info("order status changed",
			zap.String("order_id", o.ID), zap.String("from", string(from)), zap.String("to", string(o.Status)))
	}
	if effect.RestoreInventory {
		s.Metrics.InventoryRestored(ctx, o.Units())
		s.Logger.Info("inventory restored", zap.String("order_id", o.ID), zap.Int("units", o.Units()))
	}
	return o, nil
}

// Cancel is allowed for the owner or an admin while the order is pending or
// confirmed. Inventory is restored in the same unit of work; a second cancel
// finds the order already cancelled and is rejected without restoring again.
func (s *Service) Cancel(ctx context.Context, actor Actor, id, reason string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "orders.Cancel", trace.WithAttributes(attribute.String("order_id", id)))
	defer span.End()

	if reason == "" {
		reason = "Cancelled by " + actor.Label()
	}
	o, err := s.change(ctx, id, func(o *Order) (Effect, error) {
		if !actor.CanAccess(o) {
			return Effect{}, apperr.ErrForbidden
		}
		if !o.Status.Cancellable() {
			return Effect{}, apperr.Transition(string(o.Status), string(StatusCancelled))
		}
		now := s.Now().UTC()
		if err := o.Transition(StatusCancelled, "Cancelled by "+actor.Label(), now); err != nil {
			return Effect{}, err
		}
		o.Cancellation = &Cancellation{Reason: reason, CancelledAt: now, CancelledBy: actor.UserID}
		return Effect{RestoreInventory: true}, nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return o, nil
}

// UpdateStatus is the admin override. The note is mandatory and the target
// must still be allowed by the transition table.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, to Status, note string) (*Order, error) {
	if !actor.Admin {
		return nil, apperr.ErrForbidden
	}
	if !to.Valid() {
		return nil, apperr.Invalid("unknown order status %q", to)
	}
	if note == "" {
		return nil, apperr.Invalid("a note is required for manual status changes")
	}
	return s.change(ctx, id, func(o *Order) (Effect, error) {
		if err := o.Transition(to, note, s.Now().UTC()); err != nil {
			return Effect{}, err
		}
		if to == StatusCancelled {
			o.Cancellation = &Cancellation{Reason: note, CancelledAt: s.Now().UTC(), CancelledBy: actor.UserID}
		}
		return Effect{RestoreInventory: to.restocks()}, nil
	})
}

// Advance moves an order from an expected status to the next one. If the
// order is no longer in `from` (someone else moved it), it returns an
// ErrInvalidStateTransition and changes nothing.
func (s *Service) Advance(ctx context.Context, id string, from, to Status, note string) (*Order, error) {
	return s.change(ctx, id, func(o *Order) (Effect, error) {
		if o.Status != from {
			return Effect{}, apperr.Transition(string(o.Status), string(to))
		}
		if err := o.Transition(to, note, s.Now().UTC()); err != nil {
			return Effect{}, err
		}
		return Effect{RestoreInventory: to.restocks()}, nil
	})
}

// AttachPayment records the gateway transaction for an unpaid order.
func (s *Service) AttachPayment(ctx context.Context, id, transactionID string) (*Order, error) {
	return s.change(ctx, id, func(o *Order) (Effect, error) {
		if o.Paid() {
			return Effect{}, apperr.Invalid("order %s is already paid", o.Number)
		}
		o.Payment.TransactionID = transactionID
		o.Payment.Status = PaymentPending
		o.UpdatedAt = s.Now().UTC()
		return Effect{}, nil
	})
}

// RecordPaymentSuccess marks the order paid and confirms it if it is still
// pending. Repeating it is harmless.
func (s *Service) RecordPaymentSuccess(ctx context.Context, id, transactionID, note string) (*Order, error) {
	return s.change(ctx, id, func(o *Order) (Effect, error) {
		if o.Paid() {
			return Effect{}, nil
		}
		now := s.Now().UTC()
		o.Payment.Status = PaymentCompleted
		o.Payment.PaidAt = &now
		if transactionID != "" {
			o.Payment.TransactionID = transactionID
		}
		o.UpdatedAt = now
		if o.Status == StatusPending {
			if err := o.Transition(StatusConfirmed, note, now); err != nil {
				return Effect{}, err
			}
		}
		return Effect{}, nil
	})
}

// RecordPaymentFailure marks the payment failed and leaves the order status alone.
func (s *Service) RecordPaymentFailure(ctx context.Context, id string) (*Order, error) {
	return s.change(ctx, id, func(o *Order) (Effect, error) {
		if o.Paid() {
			return Effect{}, nil
		}
		o.Payment.Status = PaymentFailed
		o.UpdatedAt = s.Now().UTC()
		return Effect{}, nil
	})
}

// CheckRefundable validates a refund before the gateway is called.
func CheckRefundable(o *Order) error {
	if !o.Paid() {
		return apperr.Invalid("order %s is not paid yet", o.Number)
	}
	if o.Refund.Status == RefundCompleted {
		return apperr.Invalid("order %s is already refunded", o.Number)
	}
	if !CanTransition(o.Status, StatusReturned) {
		return apperr.Transition(string(o.Status), string(StatusReturned))
	}
	return nil
}

// RecordRefund applies a refund the gateway already accepted: the refund
// record, the move to returned, and the inventory restore land together.
func (s *Service) RecordRefund(ctx context.Context, id string, r Refund) (*Order, error) {
	o, err := s.change(ctx, id, func(o *Order) (Effect, error) {
		if err := CheckRefundable(o); err != nil {
			return Effect{}, err
		}
		now := s.Now().UTC()
		r.Status = RefundCompleted
		r.ProcessedAt = &now
		o.Refund = r
		if err := o.Transition(StatusReturned, "Refund processed", now); err != nil {
			return Effect{}, err
		}
		return Effect{RestoreInventory: true}, nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(o.ID, EventOrderRefunded, RefundedPayload{OrderID: o.ID, RefundID: r.RefundID, Amount: r.Amount})
	return o, nil
}

func (s *Service) publish(orderID, eventType string, payload any) {
	if s.Events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.Logger.Error("marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.Now().UTC(),
		Producer:      s.Producer,
		CorrelationID: orderID,
		Payload:       body,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		s.Logger.Error("marshal event envelope", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.Events.Publish(PartitionKey(orderID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
