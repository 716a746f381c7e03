// Package otel installs the process trace provider.
package otel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/louisbranch/proving.grounds/internal/platform/config"
)

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

// Settings controls trace export.
type Settings struct {
	// Endpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint string `env:"ARENA_OTEL_ENDPOINT"`
	// Enabled set to "false" disables tracing even with an endpoint.
	Enabled string `env:"ARENA_OTEL_ENABLED"`
	// SampleRatio in [0, 1] samples root spans; empty samples everything.
	SampleRatio string `env:"ARENA_OTEL_SAMPLE_RATIO"`
}

// Active reports whether s exports spans.
func (s Settings) Active() bool {
	return strings.TrimSpace(s.Endpoint) != "" && !strings.EqualFold(strings.TrimSpace(s.Enabled), "false")
}

func (s Settings) sampler() (sdktrace.Sampler, error) {
	raw := strings.TrimSpace(s.SampleRatio)
	if raw == "" {
		return sdktrace.AlwaysSample(), nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parse ARENA_OTEL_SAMPLE_RATIO: %w", err)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("ARENA_OTEL_SAMPLE_RATIO must be within [0, 1], got %v", ratio)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
}

// Setup reads Settings from the environment and installs them.
func Setup(ctx context.Context, serviceName string) (Shutdown, error) {
	var s Settings
	if err := config.ParseEnv(&s); err != nil {
		return noop, err
	}
	return Install(ctx, serviceName, s)
}

// Install registers a global batching tracer provider for serviceName when s
// is active. Otherwise nothing is registered and the shutdown is a no-op, so
// spans from otel.Tracer cost nothing.
func Install(ctx context.Context, serviceName string, s Settings) (Shutdown, error) {
	if !s.Active() {
		return noop, nil
	}
	sampler, err := s.sampler()
	if err != nil {
		return noop, err
	}
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(s.Endpoint)))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

func noop(context.Context) error { return nil }
