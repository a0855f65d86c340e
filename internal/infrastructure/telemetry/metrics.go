// Package telemetry records workflow counters through OpenTelemetry
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/garyjia/ethics-review/internal/application/port"
)

const meterName = "github.com/garyjia/ethics-review"

// Metrics implements port.Metrics with OpenTelemetry counters
type Metrics struct {
	transitions   metric.Int64Counter
	notifications metric.Int64Counter
	stalled       metric.Int64Counter
}

// NewMetrics creates the workflow counters on the given provider. A nil
// provider falls back to the global one.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	transitions, err := meter.Int64Counter("workflow.transitions",
		metric.WithDescription("Reviewer decisions recorded"),
		metric.WithUnit("{decision}"))
	if err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}

	notifications, err := meter.Int64Counter("workflow.notifications.delivered",
		metric.WithDescription("Notification delivery attempts by outcome"),
		metric.WithUnit("{notification}"))
	if err != nil {
		return nil, fmt.Errorf("create notifications counter: %w", err)
	}

	stalled, err := meter.Int64Counter("workflow.stalled",
		metric.WithDescription("Stalled applications escalated"),
		metric.WithUnit("{application}"))
	if err != nil {
		return nil, fmt.Errorf("create stalled counter: %w", err)
	}

	return &Metrics{
		transitions:   transitions,
		notifications: notifications,
		stalled:       stalled,
	}, nil
}

// TransitionRecorded implements port.Metrics
func (m *Metrics) TransitionRecorded(ctx context.Context, decision, stage string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("stage", stage),
	))
}

// NotificationDelivered implements port.Metrics
func (m *Metrics) NotificationDelivered(ctx context.Context, channel string, ok bool) {
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("success", ok),
	))
}

// StalledDetected implements port.Metrics
func (m *Metrics) StalledDetected(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.stalled.Add(ctx, int64(count))
}

var _ port.Metrics = (*Metrics)(nil)
