package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func sumPoints(t *testing.T, m metricdata.Metrics) []metricdata.DataPoint[int64] {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	return sum.DataPoints
}

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := NewHTTPMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), zap.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/track/event", func(c echo.Context) error {
		return c.JSON(http.StatusAccepted, AcceptedResponse{})
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/missing", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/track/event", bytes.NewReader([]byte(`{"name":"signup"}`))),
	} {
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := collectMetrics(t, reader)

	var total int64
	routes := make(map[string]int64)
	for _, dp := range sumPoints(t, got["insightkit.http.requests_total"]) {
		total += dp.Value
		route, _ := dp.Attributes.Value(attribute.Key("route"))
		routes[route.AsString()] += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(1), routes["/health"])
	assert.Equal(t, int64(1), routes["/api/v1/track/event"])

	hist, ok := got["insightkit.http.request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	size, ok := got["insightkit.http.request_size_bytes"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, size.DataPoints, 1, "only POSTs record a payload size")
	assert.Equal(t, uint64(1), size.DataPoints[0].Count)
	assert.Equal(t, int64(len(`{"name":"signup"}`)), size.DataPoints[0].Sum)

	for _, dp := range sumPoints(t, got["insightkit.http.active_requests"]) {
		assert.Zero(t, dp.Value, "no request should still be in flight")
	}
}

func TestHTTPMetrics_RecordOutcome(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m := NewHTTPMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil)

	ctx := context.Background()
	m.RecordOutcome(ctx, "event", outcomeAccepted)
	m.RecordOutcome(ctx, "event", outcomeAccepted)
	m.RecordOutcome(ctx, "metric", outcomeRejected)

	counts := make(map[string]int64)
	for _, dp := range sumPoints(t, collectMetrics(t, reader)["insightkit.relay.records_total"]) {
		kind, _ := dp.Attributes.Value("kind")
		outcome, _ := dp.Attributes.Value("outcome")
		counts[kind.AsString()+"/"+outcome.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"event/accepted": 2, "metric/rejected": 1}, counts)
}

func TestHTTPMetrics_NilInstruments(t *testing.T) {
	var m HTTPMetrics
	assert.NotPanics(t, func() {
		m.RecordOutcome(context.Background(), "event", outcomeAccepted)
	})
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/track/event", "/api/v1/track/event"},
		{"/metrics", "/metrics"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input), tt.input)
	}
}
