package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName identifies spans and instruments emitted by this service.
const InstrumentationName = "designbridge"

const (
	AttrJobKind  = "designbridge.job.kind"
	AttrJobID    = "designbridge.job.id"
	AttrDesignID = "designbridge.design.id"
	AttrVariant  = "designbridge.variant"
	AttrStep     = "designbridge.chain.step"
	AttrAttempts = "designbridge.poll.attempts"
)

// Tracer wraps an OpenTelemetry tracer with span helpers for job chains.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer from the given provider.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		return NewNoopTracer()
	}
	return &Tracer{tracer: tp.Tracer(InstrumentationName)}
}

// NewNoopTracer creates a tracer that does nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{tracer: tracenoop.NewTracerProvider().Tracer("")}
}

// StartExportRequest starts the root span of one export request.
func (t *Tracer) StartExportRequest(ctx context.Context, designID string, variants int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "export.request", trace.WithAttributes(
		attribute.String(AttrDesignID, designID),
		attribute.Int("designbridge.variants", variants),
	))
}

// StartChain starts a span covering one variant's job chain.
func (t *Tracer) StartChain(ctx context.Context, variant string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "export.chain", trace.WithAttributes(
		attribute.String(AttrVariant, variant),
	))
}

// StartStep starts a span for one create+poll step.
func (t *Tracer) StartStep(ctx context.Context, step int, kind string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "export.step", trace.WithAttributes(
		attribute.Int(AttrStep, step),
		attribute.String(AttrJobKind, kind),
	))
}

// RecordError marks span as failed when err is non-nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
