package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "crewlink"

// Metrics holds all CrewLink metric instruments.
type Metrics struct {
	MessagesPublished metric.Int64Counter
	MessagesConsumed  metric.Int64Counter
	PushDeliveries    metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.MessagesPublished, err = meter.Int64Counter("crewlink.messages.published",
		metric.WithDescription("Messages published for push fan-out"))
	if err != nil {
		return nil, err
	}

	m.MessagesConsumed, err = meter.Int64Counter("crewlink.messages.consumed",
		metric.WithDescription("Messages claimed through pull consume"))
	if err != nil {
		return nil, err
	}

	m.PushDeliveries, err = meter.Int64Counter("crewlink.push.deliveries",
		metric.WithDescription("Push frames written to live connections"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RegisterConnectionGauge observes the live connection count through the
// given callback.
func RegisterConnectionGauge(count func() int) error {
	meter := otel.Meter(meterName)
	_, err := meter.Int64ObservableGauge("crewlink.connections",
		metric.WithDescription("Currently connected agents"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}),
	)
	return err
}
