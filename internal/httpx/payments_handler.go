package httpx

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/payments"
)

const maxWebhookBody = 64 << 10

type PaymentsHandler struct {
	Payments *payments.Service
	// Events receives verified webhook events for the worker. When nil the
	// event is applied inline.
	Events  orders.Publisher
	Service string
	Logger  *zap.Logger
}

type intentReq struct {
	OrderID string `json:"order_id"`
}

type intentResp struct {
	ClientSecret    string          `json:"client_secret"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

type confirmReq struct {
	OrderID         string `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type refundReq struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason"`
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/payments/intents", h.createIntent)
	r.Post("/payments/confirm", h.confirm)
	r.Post("/payments/refund", h.refund)
	r.Post("/payments/webhook", h.webhook)
}

func (h *PaymentsHandler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req intentReq
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := h.Payments.CreateIntent(r.Context(), actorOf(r), req.OrderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, intentResp{
		ClientSecret:    in.ClientSecret,
		PaymentIntentID: in.ID,
		Amount:          in.Amount,
		Currency:        in.Currency,
	})
}

func (h *PaymentsHandler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmReq
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Payments.Confirm(r.Context(), actorOf(r), req.OrderID, req.PaymentIntentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PaymentsHandler) refund(w http.ResponseWriter, r *http.Request) {
	var req refundReq
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	o, err := h.Payments.Refund(r.Context(), actorOf(r), req.OrderID, req.Amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// webhook verifies the gateway signature and hands the event to the worker
// through payment.events, keyed by order so events of one order stay ordered.
func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, apperr.Invalid("read webhook body: %v", err))
		return
	}
	ev, err := h.Payments.Gateway.ParseWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, err)
		return
	}
	eventType := payments.EventType(ev.Type)
	if eventType == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}
	p := orders.PaymentEventPayload{GatewayEventID: ev.ID, IntentID: ev.IntentID, OrderID: ev.OrderID}

	if h.Events == nil {
		if err := h.Payments.HandleEvent(r.Context(), p, eventType); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	key := ev.OrderID
	if key == "" {
		key = ev.IntentID
	}
	env := orders.Envelope{
		EventID:       ev.ID,
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: key,
		Payload:       kafkax.MustMarshal(p),
	}
	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}
	h.Events.Publish(orders.PartitionKey(key), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if h.Logger != nil {
		h.Logger.Info("payment webhook queued", zap.String("event_id", ev.ID), zap.String("event_type", eventType))
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"received": true})
}
