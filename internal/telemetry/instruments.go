package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/ariefcatur/go-storefront-orders"

// Instruments are the domain counters. A nil *Instruments is valid and
// records nothing, which keeps tests free of a meter provider.
type Instruments struct {
	ordersCreated     metric.Int64Counter
	stockRejections   metric.Int64Counter
	inventoryRestored metric.Int64Counter
	statusTransitions metric.Int64Counter
	paymentOutcomes   metric.Int64Counter
}

// NewInstruments registers counters on the global meter provider.
func NewInstruments() (*Instruments, error) {
	m := otel.Meter(instrumentationName)
	var (
		in  Instruments
		err error
	)
	if in.ordersCreated, err = m.Int64Counter("shop_orders_created_total",
		metric.WithDescription("Orders committed from carts")); err != nil {
		return nil, err
	}
	if in.stockRejections, err = m.Int64Counter("shop_stock_rejections_total",
		metric.WithDescription("Requests rejected for insufficient stock")); err != nil {
		return nil, err
	}
	if in.inventoryRestored, err = m.Int64Counter("shop_inventory_restored_units_total",
		metric.WithDescription("Units returned to inventory by cancellation or refund")); err != nil {
		return nil, err
	}
	if in.statusTransitions, err = m.Int64Counter("shop_status_transitions_total",
		metric.WithDescription("Order status transitions")); err != nil {
		return nil, err
	}
	if in.paymentOutcomes, err = m.Int64Counter("shop_payment_outcomes_total",
		metric.WithDescription("Payment confirmation outcomes")); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *Instruments) OrderCreated(ctx context.Context) {
	if in == nil {
		return
	}
	in.ordersCreated.Add(ctx, 1)
}

// StockRejected counts a rejection at stage "cart" (advisory) or "order" (authoritative).
func (in *Instruments) StockRejected(ctx context.Context, stage string) {
	if in == nil {
		return
	}
	in.stockRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (in *Instruments) InventoryRestored(ctx context.Context, units int) {
	if in == nil {
		return
	}
	in.inventoryRestored.Add(ctx, int64(units))
}

func (in *Instruments) StatusTransition(ctx context.Context, to string) {
	if in == nil {
		return
	}
	in.statusTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
}

func (in *Instruments) PaymentOutcome(ctx context.Context, outcome string) {
	if in == nil {
		return
	}
	in.paymentOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
