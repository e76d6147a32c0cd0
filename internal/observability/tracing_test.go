package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzleague/league-api/internal/config"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func withTracingConfig(t *testing.T, enabled bool, endpoint string) {
	t.Helper()
	original := config.AppConfig
	config.AppConfig = &config.Config{
		TracingEnabled:     enabled,
		TracingEndpoint:    endpoint,
		TracingServiceName: "league-api-test",
		TracingSampleRatio: 1,
		Environment:        "test",
	}
	t.Cleanup(func() { config.AppConfig = original })
}

func TestInitTracer_Disabled(t *testing.T) {
	withTracingConfig(t, false, "")
	tracerProvider = nil

	InitTracer()

	assert.Nil(t, tracerProvider)
}

func TestInitTracer_NilConfig(t *testing.T) {
	original := config.AppConfig
	config.AppConfig = nil
	defer func() { config.AppConfig = original }()

	InitTracer()
	assert.Nil(t, tracerProvider)
}

func TestInitTracer_Enabled(t *testing.T) {
	// Exporter connects lazily, so an unreachable endpoint still yields a provider
	withTracingConfig(t, true, "invalid-endpoint:4317")

	InitTracer()
	defer ShutdownTracer()

	assert.NotNil(t, otel.GetTracerProvider())
}

func TestShutdownTracer_NilProvider(t *testing.T) {
	tracerProvider = nil
	ShutdownTracer()
	assert.Nil(t, tracerProvider)
}

func TestNewTracerResource(t *testing.T) {
	cfg := &config.Config{TracingServiceName: "league-api-staging", Environment: "staging", ServiceVersion: "v2.1.0"}

	res, err := newTracerResource(context.Background(), cfg)
	require.NoError(t, err)

	attrs := make(map[string]string)
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "league-api-staging", attrs["service.name"])
	assert.Equal(t, "staging", attrs["deployment.environment"])
	assert.Equal(t, "v2.1.0", attrs["service.version"])
}

func TestServiceName_Default(t *testing.T) {
	assert.Equal(t, "league-api", serviceName(&config.Config{}))
	assert.Equal(t, "custom", serviceName(&config.Config{TracingServiceName: "custom"}))
}

func TestNewSampler(t *testing.T) {
	traceID := trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	params := sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: traceID, Name: "root"}

	assert.Equal(t, sdktrace.RecordAndSample, newSampler(1).ShouldSample(params).Decision)
	assert.Equal(t, sdktrace.Drop, newSampler(0).ShouldSample(params).Decision)

	// a sampled parent wins over the ratio
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
	})
	params.ParentContext = trace.ContextWithSpanContext(context.Background(), parent)
	assert.Equal(t, sdktrace.RecordAndSample, newSampler(0).ShouldSample(params).Decision)
}
