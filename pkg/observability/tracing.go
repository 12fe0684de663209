// Package observability sets up OpenTelemetry tracing for the gateway.
// Operation spans themselves are opened by the operation log recorder.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Exporter       string    // "stdout" or "none"
	Writer         io.Writer // stdout exporter target, defaults to stderr
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracing installs a global tracer provider. With the "none" exporter
// the global no-op provider is left in place.
func InitTracing(ctx context.Context, cfg TracingConfig) (ShutdownFunc, error) {
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
