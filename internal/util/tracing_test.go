package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func rootDecision(s sdktrace.Sampler) sdktrace.SamplingDecision {
	return s.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xde, 0xad, 0xbe, 0xef},
		Name:          "OrderService.PlaceOrder",
	}).Decision
}

func TestNewSamplerRatio(t *testing.T) {
	assert.Equal(t, sdktrace.Drop, rootDecision(NewSampler(0)))
	assert.Equal(t, sdktrace.RecordAndSample, rootDecision(NewSampler(1)))

	// out of range values are clamped
	assert.Equal(t, sdktrace.Drop, rootDecision(NewSampler(-3)))
	assert.Equal(t, sdktrace.RecordAndSample, rootDecision(NewSampler(7)))
}

func TestNewSamplerFollowsParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	res := NewSampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       parent.TraceID(),
		Name:          "CatalogWorker.Handle",
	})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "CartService.ProcessCart")
	defer span.End()
	assert.NotNil(t, ctx)
}
