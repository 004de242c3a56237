package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

func TestCollector_TrackEvent(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	tt.TrackEvent(context.Background(), contracts.Event{
		Name:       "checkout.completed",
		Properties: contracts.Properties{"tier": "gold"},
	})

	records := tt.LogRecorder.Records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "checkout.completed", rec.EventName())
	assert.Equal(t, otellog.SeverityInfo, rec.Severity())

	attrs := RecordAttributes(rec)
	assert.Equal(t, "gold", attrs["tier"])
	assert.Equal(t, "event", attrs[string(KindAttr)])
}

func TestCollector_TrackTrace(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	tt.TrackTrace(context.Background(), contracts.Trace{
		Message:  "disk almost full",
		Severity: contracts.Warning,
	})

	records := tt.LogRecorder.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "disk almost full", records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, records[0].Severity())
	assert.Equal(t, "Warning", records[0].SeverityText())
}

func TestCollector_TrackMetric(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	ctx := context.Background()

	tt.TrackMetric(ctx, contracts.Metric{Name: "queue.depth", Value: 3})
	tt.TrackMetric(ctx, contracts.Metric{Name: "queue.depth", Value: 5})

	h, ok := tt.Metric(ctx, "queue.depth")
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(2), h.DataPoints[0].Count)
	assert.Equal(t, 8.0, h.DataPoints[0].Sum)
}

func TestCollector_TrackException(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	tt.TrackException(context.Background(), contracts.Exception{
		Err:        errors.New("boom"),
		Properties: contracts.Properties{"component": "db"},
	})

	span := tt.SpanByName("exception")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "boom", span.Status().Description)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "exception", span.Events()[0].Name)
	tt.AssertSpanAttribute(t, "exception", "component", "db")
}

func TestCollector_TrackExceptionNilError(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	assert.NotPanics(t, func() {
		tt.TrackException(context.Background(), contracts.Exception{})
	})
	tt.AssertSpanExists(t, "exception")
}

func TestCollector_TrackPageView(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	tt.TrackPageView(context.Background(), contracts.PageView{Name: "Home", URL: "https://example.com/"})

	tt.AssertSpanAttribute(t, "Home", "url.full", "https://example.com/")
	tt.AssertSpanAttribute(t, "Home", string(KindAttr), "pageview")
}

func TestCollector_TrackRequest(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	tt.TrackRequest(context.Background(), contracts.Request{
		Name:         "GET /items",
		Method:       "GET",
		URL:          "http://localhost/items",
		ResponseCode: 500,
		Duration:     250 * time.Millisecond,
	})

	span := tt.SpanByName("GET /items")
	require.NotNil(t, span)
	assert.Equal(t, oteltrace.SpanKindServer, span.SpanKind())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.InDelta(t, 250*time.Millisecond, span.EndTime().Sub(span.StartTime()), float64(time.Millisecond))
	tt.AssertSpanAttribute(t, "GET /items", "http.response.status_code", int64(500))
	tt.AssertSpanAttribute(t, "GET /items", "http.request.method", "GET")
}

func TestCollector_TrackDependency(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	tt.TrackDependency(context.Background(), contracts.Dependency{
		Name:       "GET /v1/users",
		Type:       "HTTP",
		Target:     "api.example.com",
		ResultCode: "200",
		Success:    true,
	})

	span := tt.SpanByName("GET /v1/users")
	require.NotNil(t, span)
	assert.Equal(t, oteltrace.SpanKindClient, span.SpanKind())
	assert.Equal(t, codes.Unset, span.Status().Code)
	tt.AssertSpanAttribute(t, "GET /v1/users", "server.address", "api.example.com")
	tt.AssertSpanAttribute(t, "GET /v1/users", string(DependencyTypeAttr), "HTTP")
}

func TestCollector_Sampling(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	ctx := context.Background()

	tt.SetSamplingPercentage(0)
	assert.Equal(t, 0.0, tt.SamplingPercentage())

	tt.TrackEvent(ctx, contracts.Event{Name: "dropped"})
	tt.TrackTrace(ctx, contracts.Trace{Message: "dropped"})
	tt.TrackException(ctx, contracts.Exception{Err: errors.New("dropped")})
	tt.TrackMetric(ctx, contracts.Metric{Name: "kept", Value: 1})

	assert.Empty(t, tt.LogRecorder.Records())
	assert.Empty(t, tt.Spans())
	_, ok := tt.Metric(ctx, "kept")
	assert.True(t, ok, "metrics are never sampled")

	tt.SetSamplingPercentage(100)
	tt.TrackEvent(ctx, contracts.Event{Name: "kept"})
	assert.Len(t, tt.LogRecorder.Records(), 1)
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(2)
	assert.Equal(t, 1.0, s.Ratio())
	assert.Contains(t, s.Description(), "InsightsRatioSampler")

	params := trace.SamplingParameters{TraceID: oteltrace.TraceID{1}}
	assert.Equal(t, trace.RecordAndSample, s.ShouldSample(params).Decision)

	s.SetRatio(-1)
	assert.Equal(t, 0.0, s.Ratio())
	assert.Equal(t, trace.Drop, s.ShouldSample(params).Decision)
	assert.False(t, s.keep())
}

func TestCollector_Core(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	logger := zap.New(tt.Core())

	logger.Warn("cache miss", zap.String("key", "user:1"))

	records := tt.LogRecorder.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "cache miss", records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, records[0].Severity())
	assert.Equal(t, "user:1", RecordAttributes(records[0])["key"])
}

func TestCollector_StartTwice(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	tt.SetAutoCollection(contracts.AutoCollection{PerformanceCounters: true})

	require.NoError(t, tt.Start(context.Background()))
	assert.Error(t, tt.Start(context.Background()))
}

func TestCollector_FlushAndShutdown(t *testing.T) {
	tt := NewTestTelemetry(zaptest.NewLogger(t))
	ctx := context.Background()

	tt.TrackEvent(ctx, contracts.Event{Name: "E"})
	tt.Flush(ctx)
	require.NoError(t, tt.ForceFlush(ctx))
	require.NoError(t, tt.Shutdown(ctx))
}

func TestSetup(t *testing.T) {
	t.Run("grpc", func(t *testing.T) {
		c, err := Setup(context.Background(), contracts.Settings{
			ConnectionString: "InstrumentationKey=" + testKey,
			ServiceName:      "svc",
			Endpoint:         "localhost:4317",
			Insecure:         true,
		})
		require.NoError(t, err)
		require.NotNil(t, c)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})

	t.Run("http", func(t *testing.T) {
		c, err := Setup(context.Background(), contracts.Settings{
			ServiceName: "svc",
			Endpoint:    "http://localhost:4318",
			Protocol:    ProtocolHTTP,
			Insecure:    true,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})

	t.Run("insecure remote rejected", func(t *testing.T) {
		_, err := Setup(context.Background(), contracts.Settings{
			ServiceName: "svc",
			Endpoint:    "collector.prod:4317",
			Insecure:    true,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid otlp config")
	})
}

func TestNewResource(t *testing.T) {
	res := newResource(&Config{
		ServiceName:        "svc",
		ServiceVersion:     "1.2.3",
		InstrumentationKey: testKey,
	})

	attrs := make(map[string]string)
	for _, attr := range res.Attributes() {
		attrs[string(attr.Key)] = attr.Value.AsString()
	}
	assert.Equal(t, "svc", attrs["service.name"])
	assert.Equal(t, "1.2.3", attrs["service.version"])
	assert.Equal(t, testKey, attrs[string(InstrumentationKeyAttr)])
}

func TestCollector_ShutdownUnreachableEndpointIsBounded(t *testing.T) {
	c, err := Setup(context.Background(), contracts.Settings{
		ConnectionString: "InstrumentationKey=" + testKey,
		ServiceName:      "svc",
		Endpoint:         "127.0.0.1:1",
		Insecure:         true,
		Logger:           zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	c.TrackEvent(context.Background(), contracts.Event{Name: "queued"})
	c.TrackException(context.Background(), contracts.Exception{Err: errors.New("boom")})
	c.Flush(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	_ = c.Shutdown(ctx)
	assert.Less(t, time.Since(start), 3*time.Second)
}
