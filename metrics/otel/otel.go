// Package otelmetrics implements defense.Observer with OpenTelemetry counters.
package otelmetrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	defense "github.com/jassus213/go-defense"
)

// Observer records suppressed backend errors and defense fires on an
// OpenTelemetry meter.
type Observer struct {
	suppressed metric.Int64Counter
	fires      metric.Int64Counter
}

var _ defense.Observer = (*Observer)(nil)

// NewObserver creates the instruments on meter.
//
// Example:
//
//	obs, err := otelmetrics.NewObserver(otel.Meter("defense"))
func NewObserver(meter metric.Meter) (*Observer, error) {
	suppressed, err := meter.Int64Counter(
		"defense.backend_errors_suppressed",
		metric.WithDescription("Counter store errors swallowed by conditions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	fires, err := meter.Int64Counter(
		"defense.fires",
		metric.WithDescription("Defense fires"),
		metric.WithUnit("{fire}"),
	)
	if err != nil {
		return nil, err
	}

	return &Observer{suppressed: suppressed, fires: fires}, nil
}

// BackendErrorSuppressed adds one to defense.backend_errors_suppressed.
func (o *Observer) BackendErrorSuppressed(op, key string, err error) {
	o.suppressed.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("kind", string(defense.KindOf(err))),
	))
}

// DefenseFired adds one to defense.fires.
func (o *Observer) DefenseFired(name string) {
	o.fires.Add(context.Background(), 1, metric.WithAttributes(attribute.String("defense", name)))
}
