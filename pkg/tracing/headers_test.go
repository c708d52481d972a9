package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestStartSpanFromHeaders_ContinuesParentTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	parentCtx, parent := tp.Tracer("producer").Start(context.Background(), "produce")
	headers := InjectTraceContext(parentCtx, nil)
	parent.End()

	require.Contains(t, headers, "traceparent")

	ctx := ExtractTraceContext(context.Background(), headers)
	assert.Equal(t, parent.SpanContext().TraceID().String(), TraceID(ctx))
}

func TestExtractTraceContext_NoHeaders(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ExtractTraceContext(ctx, nil))
	assert.Empty(t, TraceID(ctx))
}
