// Package observability provides the narrow span sink the chain engine
// emits traces through, plus OpenTelemetry-backed implementations and
// metric instruments. The engine must function with the no-op sink; the
// tracing backend is an external collaborator.
package observability

import "context"

// Sink accepts named spans with attributes. Child spans are created by
// calling StartSpan again with the context returned by a parent span,
// so one stage call, one cache check, or one batch flush each get their
// own span.
type Sink interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is a live span handle.
type Span interface {
	// SetAttribute attaches a key/value to the span.
	SetAttribute(key string, value any)
	// RecordError marks the span as failed.
	RecordError(err error)
	// End completes the span.
	End()
}

// NoopSink discards all spans.
type NoopSink struct{}

// StartSpan implements Sink.
func (NoopSink) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttribute(string, any) {}
func (noopSpan) RecordError(error)        {}
func (noopSpan) End()                     {}
