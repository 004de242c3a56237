package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/insightkit/internal/http"

// Outcomes of a relayed record.
const (
	outcomeAccepted    = "accepted"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeFailed      = "failed"
)

// HTTPMetrics holds the relay's own metrics. Instruments that fail to
// register stay nil and are skipped.
type HTTPMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	payloadSize metric.Int64Histogram
	inflight    metric.Int64UpDownCounter
	records     metric.Int64Counter
}

// NewHTTPMetrics registers the relay instruments with mp. A nil provider
// means the global one.
func NewHTTPMetrics(mp metric.MeterProvider, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(httpInstrumentationName)

	var m HTTPMetrics
	var errs []error
	collect := func(name string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	var err error
	m.requests, err = meter.Int64Counter(
		"insightkit.http.requests_total",
		metric.WithDescription("Relay HTTP requests by method, route and status code."),
		metric.WithUnit("{request}"),
	)
	collect("requests", err)

	m.duration, err = meter.Float64Histogram(
		"insightkit.http.request_duration_seconds",
		metric.WithDescription("Relay HTTP request duration by method, route and status code."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	collect("duration", err)

	m.payloadSize, err = meter.Int64Histogram(
		"insightkit.http.request_size_bytes",
		metric.WithDescription("Declared size of posted telemetry payloads."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(128, 512, 1024, 4096, 16384, 65536, 262144),
	)
	collect("payload size", err)

	m.inflight, err = meter.Int64UpDownCounter(
		"insightkit.http.active_requests",
		metric.WithDescription("Relay HTTP requests in flight."),
		metric.WithUnit("{request}"),
	)
	collect("active requests", err)

	m.records, err = meter.Int64Counter(
		"insightkit.relay.records_total",
		metric.WithDescription("Records posted to the relay by kind and outcome."),
		metric.WithUnit("{record}"),
	)
	collect("records", err)

	if len(errs) > 0 {
		logger.Warn("some relay metrics are unavailable", zap.Error(errors.Join(errs...)))
	}
	return &m
}

// MetricsMiddleware returns an Echo middleware that records request metrics.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}

			err := next(c)

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("route", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.payloadSize != nil && req.Method == "POST" && req.ContentLength >= 0 {
				m.payloadSize.Record(ctx, req.ContentLength, attrs)
			}

			return err
		}
	}
}

// RecordOutcome counts one posted record of kind.
func (m *HTTPMetrics) RecordOutcome(ctx context.Context, kind, outcome string) {
	if m.records == nil {
		return
	}
	m.records.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// normalizePath maps a route template onto a metric label. Every relay route
// is static, so only the unmatched case needs a placeholder.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
