package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"surveyflow/internal/config"
)

func TestNewSampler(t *testing.T) {
	tests := []struct {
		cfg  config.SamplerConfig
		want string
	}{
		{cfg: config.SamplerConfig{Type: SamplerAlwaysOn}, want: sdktrace.AlwaysSample().Description()},
		{cfg: config.SamplerConfig{Type: SamplerAlwaysOff}, want: sdktrace.NeverSample().Description()},
		{cfg: config.SamplerConfig{Type: SamplerTraceIDRatio, Param: 0.25}, want: sdktrace.TraceIDRatioBased(0.25).Description()},
		{cfg: config.SamplerConfig{Type: SamplerParentBasedAlwaysOn}, want: sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
		{cfg: config.SamplerConfig{Type: SamplerParentBasedTraceIDRatio, Param: 0.5}, want: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5)).Description()},
		{cfg: config.SamplerConfig{Type: "unknown"}, want: sdktrace.AlwaysSample().Description()},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSampler(tt.cfg).Description())
		})
	}
}

func TestSetup_DisabledKeepsHeaderTraceID(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, config.TracingConfig{}, "ingestion-service")
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(ctx) }()

	producer := sdktrace.NewTracerProvider()
	defer func() { _ = producer.Shutdown(ctx) }()
	parentCtx, parent := producer.Tracer("producer").Start(ctx, "produce")
	headers := InjectTraceContext(parentCtx, nil)
	parent.End()

	spanCtx, span := StartSpanFromHeaders(ctx, "ingestion.process", headers)
	defer span.End()

	assert.False(t, span.IsRecording())
	assert.Equal(t, parent.SpanContext().TraceID().String(), TraceID(spanCtx))
}

func TestProvider_ShutdownNil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}
