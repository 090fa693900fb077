package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"indexer/internal/config"
)

func TestInitDisabledStillPropagates(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, "")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), traceParentHeader)

	upstream := sdktrace.NewTracerProvider()
	defer upstream.Shutdown(context.Background())
	ctx, span := upstream.Tracer("test").Start(context.Background(), "upstream")
	defer span.End()

	extracted := ExtractTraceContext(context.Background(), InjectTraceContext(ctx, nil))
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"always_off", "AlwaysOffSampler"},
		{"always_on", "AlwaysOnSampler"},
		{"", "AlwaysOnSampler"},
		{"traceidratio", "TraceIDRatioBased{0.25}"},
		{"parentbased_always_on", "ParentBased{root:AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got := samplerFor(config.SamplerConfig{Type: tt.typ, Param: 0.25}).Description()
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestResolveServiceName(t *testing.T) {
	assert.Equal(t, "explicit", resolveServiceName(config.TracingConfig{ServiceName: "cfg"}, "explicit"))
	assert.Equal(t, "cfg", resolveServiceName(config.TracingConfig{ServiceName: "cfg"}, ""))
	assert.Equal(t, "indexer-service", resolveServiceName(config.TracingConfig{}, ""))
}

func TestShutdownNil(t *testing.T) {
	var tp *TracerProvider
	assert.NoError(t, tp.Shutdown(context.Background()))
}
