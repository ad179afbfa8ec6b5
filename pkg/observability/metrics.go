package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics mirrors gate check outcomes into OpenTelemetry and the SLO
// tracker. It satisfies the gate's MetricsHook contract.
type Metrics struct {
	checkCounter metric.Int64Counter
	durationHist metric.Float64Histogram
	slo          *SLOTracker
}

// NewMetrics creates the gate instruments on the provider's meter.
func NewMetrics(p *Provider, slo *SLOTracker) (*Metrics, error) {
	meter := p.Meter()

	counter, err := meter.Int64Counter("aegis.checks.total",
		metric.WithDescription("Total number of gate checks by stage and decision"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	hist, err := meter.Float64Histogram("aegis.check.duration",
		metric.WithDescription("Gate check duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkCounter: counter,
		durationHist: hist,
		slo:          slo,
	}, nil
}

// ObserveCheck records one completed check.
func (m *Metrics) ObserveCheck(ctx context.Context, stage string, decision string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("decision", decision),
	)
	m.checkCounter.Add(ctx, 1, attrs)
	m.durationHist.Record(ctx, elapsed.Seconds(), attrs)

	if m.slo != nil {
		m.slo.Record(SLOObservation{
			Operation: stage,
			Latency:   elapsed,
			// Escalations consume the review error budget; every other
			// decision is the gate resolving on its own.
			Success: decision != "ESCALATE",
		})
	}
}
