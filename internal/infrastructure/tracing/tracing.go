// Package tracing instruments cell processing and tier advancement with
// OpenTelemetry spans, as thin convenience wrappers over the global
// TracerProvider.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fractalvote/deliberation"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a new span from ctx under the engine's instrumentation
// scope. Callers are responsible for ending the returned span.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer().Start(ctx, name, opts...)
}

// SpanFromContext returns the current span, or a no-op span if none is set.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent records a named event on the current span, if recording.
func AddSpanEvent(ctx context.Context, name string, attrs ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, attrs...)
	}
}

// RecordError records err on the current span, if recording.
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err, opts...)
	}
}
