package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics records order placement outcomes. A nil *OrderMetrics is a no-op.
type OrderMetrics struct {
	placed metric.Int64Counter
	failed metric.Int64Counter
	amount metric.Float64Histogram
}

func NewOrderMetrics(meter metric.Meter) (*OrderMetrics, error) {
	placed, err := meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders committed"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("shop.orders.failed",
		metric.WithDescription("Order placements rejected or rolled back, by reason"))
	if err != nil {
		return nil, err
	}

	amount, err := meter.Float64Histogram("shop.orders.total_amount",
		metric.WithDescription("Total amount of committed orders"))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{placed: placed, failed: failed, amount: amount}, nil
}

func (m *OrderMetrics) RecordPlaced(ctx context.Context, total decimal.Decimal) {
	if m == nil {
		return
	}
	m.placed.Add(ctx, 1)
	m.amount.Record(ctx, total.InexactFloat64())
}

func (m *OrderMetrics) RecordFailed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
