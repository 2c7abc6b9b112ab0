package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects where update spans are exported to. SampleRatio is the share of root spans kept; spans with a
// sampled parent are always kept.
type Config struct {
	Enabled     bool    `env:"TICKFSM_OTEL_ENABLED"      envDefault:"true"`
	Endpoint    string  `env:"TICKFSM_OTEL_ENDPOINT"`
	SampleRatio float64 `env:"TICKFSM_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether cfg asks for an exporter.
func (cfg Config) Active() bool {
	return cfg.Enabled && cfg.Endpoint != ""
}

// Setup registers a global tracer provider exporting the spans of serviceName to cfg.Endpoint. Machines pick it up
// through their default tracer.
//
// Nothing is registered when cfg is not Active. The returned shutdown function flushes pending spans and is never nil.
func Setup(ctx context.Context, cfg Config, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Active() {
		return noop, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return noop, fmt.Errorf("otel sample ratio (%v) out of range [0, 1]", cfg.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otel exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
