package tts

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records attempts as OpenTelemetry instruments.
type Metrics struct {
	attempts metric.Int64Counter
	bytes    metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewMetrics registers the synthesis instruments on meter. A nil meter uses
// the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter("github.com/loqalabs/loqa-rhvoice/tts")
	}
	attempts, err := meter.Int64Counter("rhvoice.synthesis.attempts",
		metric.WithDescription("Synthesis attempts by outcome"))
	if err != nil {
		return nil, err
	}
	bytes, err := meter.Int64Counter("rhvoice.synthesis.bytes",
		metric.WithDescription("Audio bytes returned by the backend"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("rhvoice.synthesis.duration",
		metric.WithDescription("Wall time of a synthesis attempt"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{attempts: attempts, bytes: bytes, latency: latency}, nil
}

func (m *Metrics) Observe(ctx context.Context, a Attempt) {
	attrs := metric.WithAttributes(
		attribute.String("backend", a.Backend),
		attribute.String("outcome", string(a.Outcome)),
		attribute.String("voice", a.Params.Voice),
		attribute.String("format", a.Params.Format),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.latency.Record(ctx, a.Duration.Seconds(), attrs)
	if a.Outcome == OutcomeOK {
		m.bytes.Add(ctx, int64(len(a.Audio)), attrs)
	}
}
