package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/DTPriya20/click-gait/pkg/models"
)

const meterName = "github.com/DTPriya20/click-gait/internal/worker"

// metrics holds the service instruments. The global meter provider decides
// where they are exported; without one they are no-ops.
type metrics struct {
	predictions  metric.Int64Counter
	unknown      metric.Int64Counter
	warnings     metric.Int64Counter
	failures     metric.Int64Counter
	latency      metric.Float64Histogram
	registration metric.Registration
}

func newMetrics(meter metric.Meter, sseClients, activeSessions func() int) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	m := &metrics{}
	var err error

	if m.predictions, err = meter.Int64Counter("gait.predictions",
		metric.WithDescription("Recorded prediction events by reported movement")); err != nil {
		return nil, err
	}
	if m.unknown, err = meter.Int64Counter("gait.unknown_movements",
		metric.WithDescription("Events reported as unknown movement")); err != nil {
		return nil, err
	}
	if m.warnings, err = meter.Int64Counter("gait.warnings",
		metric.WithDescription("Persistent unknown movement warnings raised")); err != nil {
		return nil, err
	}
	if m.failures, err = meter.Int64Counter("gait.predict_failures",
		metric.WithDescription("Predict requests that failed, by reason")); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram("gait.predict_duration",
		metric.WithDescription("Predict handling time"), metric.WithUnit("s")); err != nil {
		return nil, err
	}

	clients, err := meter.Int64ObservableGauge("gait.sse_clients",
		metric.WithDescription("Connected event stream clients"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64ObservableGauge("gait.active_sessions",
		metric.WithDescription("Session keys with a live lock entry"))
	if err != nil {
		return nil, err
	}
	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(clients, int64(sseClients()))
		o.ObserveInt64(sessions, int64(activeSessions()))
		return nil
	}, clients, sessions)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) recordPrediction(ctx context.Context, movement string, warned bool, took time.Duration) {
	m.predictions.Add(ctx, 1, metric.WithAttributes(attribute.String("movement", movement)))
	if movement == models.MovementUnknown {
		m.unknown.Add(ctx, 1)
	}
	if warned {
		m.warnings.Add(ctx, 1)
	}
	m.latency.Record(ctx, took.Seconds())
}

func (m *metrics) recordFailure(ctx context.Context, reason string) {
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *metrics) close() error {
	if m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
