// Package otel builds the tracer provider used to export capture sessions as
// spans.
package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrzor/trec/internal/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

const exportTimeout = 10 * time.Second

// InitProvider creates a tracer provider exporting over OTLP/HTTP. A bare
// host:port endpoint is dialed in plain HTTP; a URL endpoint decides its own
// scheme and path.
func InitProvider(ctx context.Context, cfg *config.OTELConfig, serviceVersion string, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := cfg.Endpoint()
	logger.Info("exporting spans",
		zap.String("service_name", cfg.ServiceName),
		zap.String("endpoint", endpoint))

	opts := []otlptracehttp.Option{otlptracehttp.WithTimeout(exportTimeout)}
	if cfg.EndpointIsURL() {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := newResource(ctx, cfg, serviceVersion)
	if err != nil {
		return nil, err
	}

	// The session span context is always sampled, so parent-based sampling
	// keeps every record.
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func newResource(ctx context.Context, cfg *config.OTELConfig, serviceVersion string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
		resource.WithAttributes(cfg.ParseResourceAttributes()...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// ShutdownProvider flushes buffered spans and stops the provider.
func ShutdownProvider(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}

	var errs []error
	if err := tp.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing spans: %w", err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down tracer provider: %w", err))
	}
	return errors.Join(errs...)
}
