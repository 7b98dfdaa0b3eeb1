package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// w3c is used directly rather than through the global propagator so a
// traceparent can be joined and rendered before Init runs.
var w3c propagation.TraceContext

// JoinTrace returns ctx carrying the remote span described by a W3C
// traceparent header, so spans started from it join that trace.
func JoinTrace(ctx context.Context, traceparent string) (context.Context, error) {
	joined := w3c.Extract(ctx, propagation.MapCarrier{"traceparent": traceparent})
	if !trace.SpanContextFromContext(joined).IsValid() {
		return ctx, fmt.Errorf("invalid traceparent %q", traceparent)
	}
	return joined, nil
}

// TraceParent renders the span in ctx as a traceparent header, or "" when
// ctx carries no valid span.
func TraceParent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	w3c.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

// TraceID returns the trace ID of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
