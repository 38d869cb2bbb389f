// Package metrics exposes OpenTelemetry counters for order and settlement activity.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "restaurant-pos"

// Recorder groups the counters the order service updates
type Recorder struct {
	ordersCreated     metric.Int64Counter
	itemTransitions   metric.Int64Counter
	itemsArchived     metric.Int64Counter
	paymentsCompleted metric.Int64Counter
	revenue           metric.Float64Counter
	persistenceErrors metric.Int64Counter
}

// New builds a recorder on the given meter provider; nil uses the global provider
func New(provider metric.MeterProvider) (*Recorder, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	r := &Recorder{}
	var err error
	if r.ordersCreated, err = meter.Int64Counter("pos.orders.created",
		metric.WithDescription("Orders created by waiters")); err != nil {
		return nil, err
	}
	if r.itemTransitions, err = meter.Int64Counter("pos.items.transitions",
		metric.WithDescription("Order item status changes")); err != nil {
		return nil, err
	}
	if r.itemsArchived, err = meter.Int64Counter("pos.orders.archived",
		metric.WithDescription("Archive records created from ready items")); err != nil {
		return nil, err
	}
	if r.paymentsCompleted, err = meter.Int64Counter("pos.payments.completed",
		metric.WithDescription("Table settlements")); err != nil {
		return nil, err
	}
	if r.revenue, err = meter.Float64Counter("pos.payments.revenue",
		metric.WithDescription("Settled amount after discount")); err != nil {
		return nil, err
	}
	if r.persistenceErrors, err = meter.Int64Counter("pos.persistence.errors",
		metric.WithDescription("Failed collection reads or writes")); err != nil {
		return nil, err
	}
	return r, nil
}

// Noop returns a recorder whose counters discard everything
func Noop() *Recorder {
	r, _ := New(noop.NewMeterProvider())
	return r
}

func (r *Recorder) OrderCreated(ctx context.Context, branch string, items int) {
	r.ordersCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("branch", branch),
		attribute.Int("items", items),
	))
}

func (r *Recorder) ItemTransitioned(ctx context.Context, branch, status string) {
	r.itemTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("branch", branch),
		attribute.String("status", status),
	))
}

func (r *Recorder) OrdersArchived(ctx context.Context, branch, station string, n int) {
	r.itemsArchived.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("branch", branch),
		attribute.String("station", station),
	))
}

func (r *Recorder) PaymentCompleted(ctx context.Context, branch, method string, final float64) {
	attrs := metric.WithAttributes(
		attribute.String("branch", branch),
		attribute.String("method", method),
	)
	r.paymentsCompleted.Add(ctx, 1, attrs)
	r.revenue.Add(ctx, final, attrs)
}

func (r *Recorder) PersistenceFailed(ctx context.Context, op string) {
	r.persistenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
