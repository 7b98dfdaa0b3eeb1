package observability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

const remoteParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestTracerDefaultsToNoop(t *testing.T) {
	if Enabled() {
		t.Fatal("tracing should start disabled")
	}
	ctx, span := StartClientSpan(context.Background(), "pgcore.execute", AttrMode.String("sync"))
	SetSpanError(span, errors.New("boom"))
	span.End()
	if id := TraceID(ctx); id != "" {
		t.Errorf("noop span carried trace id %q", id)
	}
	if tp := TraceParent(ctx); tp != "" {
		t.Errorf("noop span rendered traceparent %q", tp)
	}
}

func TestJoinTrace(t *testing.T) {
	ctx, err := JoinTrace(context.Background(), remoteParent)
	if err != nil {
		t.Fatal(err)
	}
	if got := TraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID = %q", got)
	}
	if got := TraceParent(ctx); got != remoteParent {
		t.Errorf("TraceParent = %q", got)
	}

	if _, err := JoinTrace(context.Background(), "not-a-traceparent"); err == nil {
		t.Error("malformed traceparent accepted")
	}
}

func TestInitWithNoneExporter(t *testing.T) {
	ctx := context.Background()
	if err := Init(ctx, Config{Enabled: true, Exporter: ExporterNone, SampleRate: 1}, "test"); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer Shutdown(ctx)
	if !Enabled() {
		t.Fatal("Enabled = false after Init")
	}

	ctx, span := StartSpan(ctx, "pgcore.connect", attribute.Int("n", 1))
	SetSpanOK(span)
	defer span.End()

	if TraceID(ctx) == "" {
		t.Fatal("expected a trace id from the sdk tracer")
	}
	tp := TraceParent(ctx)
	if !strings.HasPrefix(tp, "00-"+TraceID(ctx)+"-") {
		t.Errorf("traceparent = %q", tp)
	}
}

func TestJoinedTraceFollowsParentSampling(t *testing.T) {
	ctx := context.Background()
	if err := Init(ctx, Config{Enabled: true, Exporter: ExporterNone, SampleRate: 0}, "test"); err != nil {
		t.Fatal(err)
	}
	defer Shutdown(ctx)

	_, fresh := StartSpan(ctx, "pgcore.execute")
	if fresh.SpanContext().IsSampled() {
		t.Error("new trace sampled at rate 0")
	}
	fresh.End()

	joined, err := JoinTrace(ctx, remoteParent)
	if err != nil {
		t.Fatal(err)
	}
	_, child := StartSpan(joined, "pgcore.execute")
	defer child.End()
	if !child.SpanContext().IsSampled() {
		t.Error("child of a sampled remote parent was dropped")
	}
}

func TestShutdownRestoresNoop(t *testing.T) {
	ctx := context.Background()
	if err := Init(ctx, Config{Enabled: true, Exporter: ExporterNone}, "test"); err != nil {
		t.Fatal(err)
	}
	if err := Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if Enabled() {
		t.Error("Enabled after Shutdown")
	}
}

func TestInitRejectsUnknownExporter(t *testing.T) {
	err := Init(context.Background(), Config{Enabled: true, Exporter: "zipkin"}, "test")
	if err == nil || !strings.Contains(err.Error(), "zipkin") {
		t.Fatalf("err = %v", err)
	}
	if Enabled() {
		t.Error("failed Init left tracing enabled")
	}
}
