// Package telemetry wires OpenTelemetry tracing and Pyroscope continuous
// profiling into the fabric binaries. Both are opt-in; until Init runs (or
// when it runs disabled) every helper degrades to a no-op, so call sites
// never branch on whether observability is configured.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// instrumentationName identifies the fallback tracer used before Init.
const instrumentationName = "classmux"

// shutdownTimeout bounds the final span flush on process exit.
const shutdownTimeout = 5 * time.Second

// Config controls the OTLP trace exporter.
type Config struct {
	Enabled        bool
	ServiceName    string  // reported as service.name
	ServiceVersion string  // reported as service.version
	Endpoint       string  // OTLP gRPC endpoint, host:port
	Insecure       bool    // plaintext gRPC, for local collectors
	SampleRate     float64 // head sampling ratio in [0, 1]
}

// DefaultConfig returns the settings used when the config file has no
// telemetry section: tracing off, local collector, sample everything.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "classmux",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

var (
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
)

// Init installs the global tracer provider and W3C context propagation.
// The returned shutdown flushes buffered spans; call it on process exit.
// When cfg.Enabled is false nothing is installed and shutdown is a no-op.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		enabled = false
		tracer = noop.NewTracerProvider().Tracer(instrumentationName)
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer = provider.Tracer(cfg.ServiceName)
	enabled = true

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return provider.Shutdown(ctx)
	}, nil
}

// newExporter dials the OTLP collector over gRPC.
func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting OTLP exporter: %w", err)
	}
	return exporter, nil
}

// samplerFor maps the configured ratio onto an SDK sampler. Values at or
// beyond the ends of the range collapse to the fixed samplers.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the process tracer. Before Init, or with tracing disabled,
// this is a no-op tracer, so spans are safe to start unconditionally.
func Tracer() trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return tracer
}

// IsEnabled reports whether Init installed a real exporter.
func IsEnabled() bool {
	return enabled
}
