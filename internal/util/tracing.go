package util

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "storefront"

// TraceOptions configures the exported traces.
type TraceOptions struct {
	Endpoint    string
	Environment string
	// SampleRatio is the share of root traces kept, clamped to [0, 1].
	// Child spans follow their parent's decision.
	SampleRatio float64
}

// InitTracer installs a Jaeger-backed provider as the global tracer provider.
// Callers shut it down on exit to flush pending spans.
func InitTracer(opts TraceOptions) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)))
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(tracerName),
			semconv.DeploymentEnvironmentKey.String(opts.Environment),
			semconv.HostNameKey.String(Hostname()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	ratio := clampRatio(opts.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(ratio)),
	)
	otel.SetTracerProvider(tp)

	GetLogger().Info("Tracer initialized",
		zap.String("endpoint", opts.Endpoint),
		zap.Float64("sample_ratio", ratio))
	return tp, nil
}

// NewSampler samples root spans by trace ID and defers to the parent otherwise.
func NewSampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(ratio)))
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// StartSpan starts a span on the global provider. Before InitTracer runs it
// returns no-op spans.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName)
}
