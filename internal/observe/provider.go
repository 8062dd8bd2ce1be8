package observe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/MrWong99/aurasync/internal/config"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName defaults to "aurasync".
	ServiceName    string
	ServiceVersion string

	// Telemetry selects the span exporter and sampling ratio.
	Telemetry config.TelemetryConfig

	// TraceWriter receives spans when the stdout exporter is selected.
	// Defaults to os.Stdout.
	TraceWriter io.Writer
}

// InitProvider registers global meter and tracer providers plus the W3C
// trace context propagator, so spans started by the browser extension
// continue server side.
//
// Metrics go through the Prometheus bridge and are scraped on /metrics.
// Spans go to the exporter chosen by cfg.Telemetry; with "none" they are
// sampled and recorded but never leave the process.
//
// The returned shutdown flushes both providers. Call it before exiting.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "aurasync"
	}

	// Detected attributes carry the SDK's own schema URL; ours carry none,
	// so the two never conflict.
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	exp, err := NewTraceExporter(ctx, cfg.Telemetry, cfg.TraceWriter)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tp := sdktrace.NewTracerProvider(tracerOptions(res, exp, cfg.Telemetry.SampleRatio)...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Traces first so spans ended during shutdown still count in metrics.
	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// tracerOptions honours the parent's sampling decision and samples root
// spans at ratio. A ratio outside (0, 1) samples everything.
func tracerOptions(res *resource.Resource, exp sdktrace.SpanExporter, ratio float64) []sdktrace.TracerProviderOption {
	sampler := sdktrace.AlwaysSample()
	if ratio > 0 && ratio < 1 {
		sampler = sdktrace.TraceIDRatioBased(ratio)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return opts
}
