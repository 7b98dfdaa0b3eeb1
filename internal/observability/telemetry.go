package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporters accepted by Config.Exporter.
const (
	ExporterOTLP = "otlp-http" // OTLP over HTTP to Config.Endpoint; the default
	ExporterNone = "none"      // spans are recorded and dropped
)

// Config holds telemetry configuration
type Config struct {
	Enabled     bool
	Exporter    string
	Endpoint    string  // host:port of the OTLP/HTTP collector
	ServiceName string  // defaults to pgcore
	SampleRate  float64 // ratio of new traces sampled; joined traces follow their parent
}

type provider struct {
	tp     *sdktrace.TracerProvider // nil while disabled
	tracer trace.Tracer
}

var global = disabled()

func disabled() *provider {
	return &provider{tracer: noop.NewTracerProvider().Tracer("")}
}

// Init installs the tracer used for connect and execute spans. Until it is
// called, or when cfg is not enabled, spans come from a no-op tracer.
func Init(ctx context.Context, cfg Config, version string) error {
	if !cfg.Enabled {
		global = disabled()
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pgcore"
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case ExporterOTLP, "":
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("create OTLP exporter: %w", err)
		}
		exporter = exp
	case ExporterNone:
		exporter = discardExporter{}
	default:
		return fmt.Errorf("unknown exporter %q (want %s or %s)", cfg.Exporter, ExporterOTLP, ExporterNone)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	rate := min(max(cfg.SampleRate, 0), 1)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(w3c, propagation.Baggage{}))

	global = &provider{tp: tp, tracer: tp.Tracer("github.com/oriys/pgcore")}
	return nil
}

// Shutdown flushes pending spans within ctx's deadline and restores the
// no-op tracer.
func Shutdown(ctx context.Context) error {
	p := global
	if p.tp == nil {
		return nil
	}
	global = disabled()
	return p.tp.Shutdown(ctx)
}

// Tracer returns the current tracer
func Tracer() trace.Tracer {
	return global.tracer
}

// Enabled reports whether spans are exported
func Enabled() bool {
	return global.tp != nil
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error { return nil }
