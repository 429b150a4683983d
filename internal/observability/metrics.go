package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the counters recorded by the poller and orchestrator.
type Metrics struct {
	pollAttempts  metric.Int64Counter
	jobOutcomes   metric.Int64Counter
	chainOutcomes metric.Int64Counter
	sinkOutcomes  metric.Int64Counter
}

// NewMetrics registers instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		return NewNoopMetrics(), nil
	}
	return newMetrics(mp.Meter(InstrumentationName))
}

// NewNoopMetrics creates metrics that do nothing.
func NewNoopMetrics() *Metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter("")) //nolint:errcheck
	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error
	if m.pollAttempts, err = meter.Int64Counter("designbridge.poll.attempts",
		metric.WithDescription("Status reads issued while polling remote jobs")); err != nil {
		return nil, err
	}
	if m.jobOutcomes, err = meter.Int64Counter("designbridge.job.outcomes",
		metric.WithDescription("Terminal poll results by job kind and outcome")); err != nil {
		return nil, err
	}
	if m.chainOutcomes, err = meter.Int64Counter("designbridge.chain.outcomes",
		metric.WithDescription("Variant chain results")); err != nil {
		return nil, err
	}
	if m.sinkOutcomes, err = meter.Int64Counter("designbridge.sink.outcomes",
		metric.WithDescription("Artifact sink results")); err != nil {
		return nil, err
	}
	return m, nil
}

// PollAttempt counts one status read.
func (m *Metrics) PollAttempt(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.pollAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrJobKind, kind)))
}

// JobOutcome counts one finished poll (succeeded, failed, timeout, error).
func (m *Metrics) JobOutcome(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.jobOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrJobKind, kind),
		attribute.String("designbridge.outcome", outcome),
	))
}

// ChainOutcome counts one finished variant chain.
func (m *Metrics) ChainOutcome(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.chainOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("designbridge.ok", ok)))
}

// SinkOutcome counts one artifact handed to the sink.
func (m *Metrics) SinkOutcome(ctx context.Context, persistent, ok bool) {
	if m == nil {
		return
	}
	m.sinkOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("designbridge.persistent", persistent),
		attribute.Bool("designbridge.ok", ok),
	))
}
