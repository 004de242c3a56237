// Package http provides the insightkit relay API: telemetry posted over HTTP
// is forwarded through an insights.Client.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightkit/internal/logging"
	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
	"github.com/fyrsmithlabs/insightkit/pkg/insights"
)

// Server provides HTTP endpoints for insightkit.
type Server struct {
	echo    *echo.Echo
	client  *insights.Client
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string

	// Gatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// MeterProvider receives the server's own request metrics. Defaults to
	// the global provider.
	MeterProvider metric.MeterProvider
}

// NewServer creates a new HTTP server.
func NewServer(client *insights.Client, logger *zap.Logger, cfg *Config) (*Server, error) {
	if client == nil {
		return nil, fmt.Errorf("telemetry client cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Addr: "127.0.0.1:8080"}
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		client:  client,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(cfg.MeterProvider, logger),
	}

	// Recover sits inside the logging and metrics middleware so panics are
	// still counted, and outside the client's middleware, which re-panics
	// after recording the exception. Handler errors are written innermost so
	// the client records the final status code.
	e.Use(middleware.RequestID())
	e.Use(s.logRequests)
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(middleware.Recover())
	e.Use(echo.WrapMiddleware(client.Middleware))
	e.Use(writeErrors)

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	track := v1.Group("/track")
	track.POST("/event", s.handleEvent)
	track.POST("/metric", s.handleMetric)
	track.POST("/trace", s.handleTrace)
	track.POST("/exception", s.handleException)
	track.POST("/pageview", s.handlePageView)
	v1.POST("/flush", s.handleFlush)
}

// logRequests runs after RequestID, and logs after the client middleware
// has put the operation id on the request context.
func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))))

		err := next(c)

		fields := append(logging.ContextFields(c.Request().Context()),
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		s.logger.Info("http request", fields...)

		return err
	}
}

func writeErrors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := next(c); err != nil {
			c.Error(err)
		}
		return nil
	}
}

// handleHealth reports liveness and whether telemetry is flowing.
func (s *Server) handleHealth(c echo.Context) error {
	state := "uninitialized"
	if s.client.Initialized() {
		state = "initialized"
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Telemetry: state})
}

func (s *Server) handleEvent(c echo.Context) error {
	const kind = "event"
	var req EventRequest
	if err := s.bind(c, kind, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return s.reject(c, kind, "name field is required")
	}
	return s.accepted(c, kind, s.client.TrackEvent(c.Request().Context(), req.Name, req.Properties))
}

func (s *Server) handleMetric(c echo.Context) error {
	const kind = "metric"
	var req MetricRequest
	if err := s.bind(c, kind, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return s.reject(c, kind, "name field is required")
	}
	if req.Value == nil {
		return s.reject(c, kind, "value field is required")
	}
	return s.accepted(c, kind, s.client.TrackMetric(c.Request().Context(), req.Name, *req.Value, req.Properties))
}

func (s *Server) handleTrace(c echo.Context) error {
	const kind = "trace"
	var req TraceRequest
	if err := s.bind(c, kind, &req); err != nil {
		return err
	}
	if req.Message == "" {
		return s.reject(c, kind, "message field is required")
	}
	severity, err := contracts.ParseSeverity(req.Severity)
	if err != nil {
		return s.reject(c, kind, err.Error())
	}
	return s.accepted(c, kind, s.client.TrackTrace(c.Request().Context(), req.Message, severity, req.Properties))
}

func (s *Server) handleException(c echo.Context) error {
	const kind = "exception"
	var req ExceptionRequest
	if err := s.bind(c, kind, &req); err != nil {
		return err
	}
	if req.Message == "" {
		return s.reject(c, kind, "message field is required")
	}
	return s.accepted(c, kind, s.client.TrackException(c.Request().Context(), errors.New(req.Message), req.Properties))
}

func (s *Server) handlePageView(c echo.Context) error {
	const kind = "pageview"
	var req PageViewRequest
	if err := s.bind(c, kind, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return s.reject(c, kind, "name field is required")
	}
	return s.accepted(c, kind, s.client.TrackPageView(c.Request().Context(), req.Name, req.URL, req.Properties))
}

func (s *Server) handleFlush(c echo.Context) error {
	return s.accepted(c, "flush", s.client.Flush(c.Request().Context()))
}

func (s *Server) bind(c echo.Context, kind string, v any) error {
	if err := c.Bind(v); err != nil {
		s.logger.Warn("invalid track request", zap.String("kind", kind), zap.Error(err))
		return s.reject(c, kind, "invalid request body")
	}
	return nil
}

func (s *Server) reject(c echo.Context, kind, msg string) error {
	s.metrics.RecordOutcome(c.Request().Context(), kind, outcomeRejected)
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// accepted maps a track result onto the response. The client only fails
// when it cannot forward at all.
func (s *Server) accepted(c echo.Context, kind string, err error) error {
	ctx := c.Request().Context()
	switch {
	case errors.Is(err, insights.ErrNotInitialized), errors.Is(err, insights.ErrClosed):
		s.metrics.RecordOutcome(ctx, kind, outcomeUnavailable)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "telemetry client is not running")
	case err != nil:
		s.metrics.RecordOutcome(ctx, kind, outcomeFailed)
		return err
	}
	s.metrics.RecordOutcome(ctx, kind, outcomeAccepted)
	return c.JSON(http.StatusAccepted, AcceptedResponse{
		OperationID: contracts.OperationIDFromContext(ctx),
	})
}

// Handler returns the relay's routes with their middleware, for mounting
// under another server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	return s.echo.Start(s.config.Addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
