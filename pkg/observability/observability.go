package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tanpawarit/Chative-Document-Assistant"

// Recorder traces and measures turns and their nodes.
// Use New for OpenTelemetry or Noop{} when disabled.
type Recorder interface {
	StartTurnSpan(ctx context.Context, sessionID string) (context.Context, trace.Span)
	StartNodeSpan(ctx context.Context, node string) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)

	RecordNode(ctx context.Context, node string, duration time.Duration, err error)
	RecordTurn(ctx context.Context, intent string, duration time.Duration, err error)
	RecordCheckpoint(ctx context.Context, op string, err error)
}

type otelRecorder struct {
	tracer trace.Tracer

	nodeRuns      metric.Int64Counter
	nodeErrors    metric.Int64Counter
	nodeLatency   metric.Float64Histogram
	turns         metric.Int64Counter
	turnLatency   metric.Float64Histogram
	checkpointOps metric.Int64Counter
}

// New builds a recorder on explicit providers.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (Recorder, error) {
	meter := mp.Meter(instrumentationName)
	r := &otelRecorder{tracer: tp.Tracer(instrumentationName)}

	var err error
	if r.nodeRuns, err = meter.Int64Counter("docassist.node.executions",
		metric.WithDescription("Number of turn graph node executions"),
	); err != nil {
		return nil, err
	}
	if r.nodeErrors, err = meter.Int64Counter("docassist.node.errors",
		metric.WithDescription("Number of failed node executions"),
	); err != nil {
		return nil, err
	}
	if r.nodeLatency, err = meter.Float64Histogram("docassist.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if r.turns, err = meter.Int64Counter("docassist.turns",
		metric.WithDescription("Number of processed turns"),
	); err != nil {
		return nil, err
	}
	if r.turnLatency, err = meter.Float64Histogram("docassist.turn.latency_ms",
		metric.WithDescription("Turn latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if r.checkpointOps, err = meter.Int64Counter("docassist.checkpoint.operations",
		metric.WithDescription("Checkpoint loads and saves"),
	); err != nil {
		return nil, err
	}
	return r, nil
}

// NewGlobal builds a recorder on the global providers, falling back to Noop.
func NewGlobal() Recorder {
	r, err := New(otel.GetTracerProvider(), otel.GetMeterProvider())
	if err != nil {
		log.Warn().Err(err).Msg("metrics initialization failed, using no-op recorder")
		return Noop{}
	}
	return r
}

func (r *otelRecorder) StartTurnSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "docassist.turn",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (r *otelRecorder) StartNodeSpan(ctx context.Context, node string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "docassist.node."+node,
		trace.WithAttributes(attribute.String("node", node)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (r *otelRecorder) EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (r *otelRecorder) RecordNode(ctx context.Context, node string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node", node))
	r.nodeRuns.Add(ctx, 1, attrs)
	r.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		r.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (r *otelRecorder) RecordTurn(ctx context.Context, intent string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("intent", intent),
		attribute.Bool("success", err == nil),
	)
	r.turns.Add(ctx, 1, attrs)
	r.turnLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (r *otelRecorder) RecordCheckpoint(ctx context.Context, op string, err error) {
	r.checkpointOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", err == nil),
	))
}
