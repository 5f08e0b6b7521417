package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNilInstrumentsRecordNothing(t *testing.T) {
	var in *Instruments
	ctx := context.Background()
	in.OrderCreated(ctx)
	in.StockRejected(ctx, "cart")
	in.InventoryRestored(ctx, 3)
	in.StatusTransition(ctx, "shipped")
	in.PaymentOutcome(ctx, "failed")
}

func TestInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	in, err := NewInstruments()
	require.NoError(t, err)
	ctx := context.Background()
	in.OrderCreated(ctx)
	in.OrderCreated(ctx)
	in.InventoryRestored(ctx, 4)
	in.StockRejected(ctx, "order")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["shop_orders_created_total"])
	assert.Equal(t, int64(4), sums["shop_inventory_restored_units_total"])
	assert.Equal(t, int64(1), sums["shop_stock_rejections_total"])
}
