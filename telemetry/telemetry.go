// Package telemetry builds the OpenTelemetry tracer provider used by the
// forge CLI. Spans go to stdout for local inspection or to an OTLP/HTTP
// collector.
package telemetry

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Exporter names.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// DefaultServiceName is reported on every span's resource.
const DefaultServiceName = "exercise-forge"

// Config selects and configures the span exporter.
type Config struct {
	ServiceName string
	Version     string

	// Exporter is one of the Exporter constants. Empty means none.
	Exporter string

	// Writer receives stdout spans. Defaults to os.Stderr so span dumps do not
	// mix with command output.
	Writer io.Writer

	// Endpoint and Insecure configure the OTLP/HTTP exporter.
	Endpoint string
	Insecure bool

	// SampleRatio applies to root spans. Values outside [0,1] are clamped;
	// nil samples everything.
	SampleRatio *float64
}

// NewTracerProvider builds a tracer provider for cfg. With no exporter the
// provider still creates valid spans, so trace IDs appear in logs, but
// nothing is exported.
func NewTracerProvider(ctx context.Context, cfg Config, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceNameKey.String(name))}
	if cfg.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersionKey.String(cfg.Version)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		logger.Warn("failed to create resource, using default", "error", err)
		res = resource.Default()
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)))),
	}

	switch cfg.Exporter {
	case "", ExporterNone:
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		// Export each span as it ends.
		opts = append(opts, sdktrace.WithSyncer(exp))
	case ExporterOTLP:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("otlp exporter requires an endpoint")
		}
		httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown exporter %q", cfg.Exporter)
	}

	logger.Debug("tracer provider initialized", "service", name, "exporter", cfg.Exporter)
	return sdktrace.NewTracerProvider(opts...), nil
}

// Install makes tp the global tracer provider and installs the W3C trace
// context and baggage propagators.
func Install(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// ParentContext returns ctx carrying a remote parent span built from
// hex-encoded trace and span IDs, linking forge spans into a caller's trace.
// Invalid or empty IDs leave ctx unchanged.
func ParentContext(ctx context.Context, traceID, parentSpanID string) context.Context {
	if traceID == "" || parentSpanID == "" {
		return ctx
	}

	tb, err := hex.DecodeString(traceID)
	if err != nil || len(tb) != 16 {
		return ctx
	}
	sb, err := hex.DecodeString(parentSpanID)
	if err != nil || len(sb) != 8 {
		return ctx
	}

	var tid trace.TraceID
	copy(tid[:], tb)
	var sid trace.SpanID
	copy(sid[:], sb)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	if !sc.IsValid() {
		return ctx
	}
	return trace.ContextWithSpanContext(ctx, sc)
}

func sampleRatio(r *float64) float64 {
	switch {
	case r == nil:
		return 1
	case *r < 0:
		return 0
	case *r > 1:
		return 1
	default:
		return *r
	}
}
