package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitializeDisabled(t *testing.T) {
	config := DefaultConfig("task-engine")
	config.Enabled = false

	tp, err := Initialize(context.Background(), config)
	require.NoError(t, err)

	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestGetTraceID(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()

	assert.Empty(t, GetTraceID(context.Background()))

	ctx, span := provider.Tracer("test").Start(context.Background(), "dispatch")
	defer span.End()

	assert.Len(t, GetTraceID(ctx), 32)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
