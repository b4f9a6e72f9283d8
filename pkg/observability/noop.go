package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Noop is a Recorder that does nothing.
type Noop struct{}

var _ Recorder = Noop{}

var noopSpan = noop.Span{}

func (Noop) StartTurnSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (Noop) StartNodeSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (Noop) EndSpan(trace.Span, error) {}

func (Noop) RecordNode(context.Context, string, time.Duration, error) {}

func (Noop) RecordTurn(context.Context, string, time.Duration, error) {}

func (Noop) RecordCheckpoint(context.Context, string, error) {}
