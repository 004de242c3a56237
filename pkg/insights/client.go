package insights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateInitialized:
		return "initialized"
	case stateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// guardLogInterval spaces out "not initialized" errors so a hot path that
// tracks before Initialize does not flood the log.
const guardLogInterval = 10 * time.Second

// Client is a telemetry façade over a collector. The zero value is not
// usable; construct one with New. A Client is safe for concurrent use.
type Client struct {
	logger   *zap.Logger
	setup    contracts.SetupFunc
	metrics  *clientMetrics
	guardLog *rate.Limiter

	mu              sync.RWMutex
	state           state
	backend         string
	collector       contracts.Collector
	nativeCore      zapcore.Core
	autoCollect     contracts.AutoCollection
	shutdownTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSetup replaces backend selection with a fixed collector constructor.
func WithSetup(setup contracts.SetupFunc) Option {
	return func(c *Client) {
		c.setup = setup
	}
}

// WithRegisterer registers the client's own metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newClientMetrics(reg)
	}
}

// New creates an uninitialized client. logger may be nil.
func New(logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		logger:   logger.Named("insights"),
		guardLog: rate.NewLimiter(rate.Every(guardLogInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newClientMetrics(nil)
	}
	return c
}

// Initialize validates cfg, sets up and starts the collector, and marks the
// client initialized.
//
// A second call after success logs a warning and returns nil without
// touching the running collector. A *ConfigurationError or
// *InitializationError leaves the client uninitialized.
func (c *Client) Initialize(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateInitialized:
		c.logger.Warn("telemetry client already initialized, ignoring", zap.String("backend", c.backend))
		c.metrics.initializations.WithLabelValues("skipped").Inc()
		return nil
	case stateClosed:
		return ErrClosed
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		c.metrics.initializations.WithLabelValues("config_error").Inc()
		return err
	}

	setup := c.setup
	if setup == nil {
		var ok bool
		if setup, ok = backends[cfg.Backend]; !ok {
			c.metrics.initializations.WithLabelValues("config_error").Inc()
			return &ConfigurationError{
				Field:  "backend",
				Reason: fmt.Sprintf("unknown backend %q (want %q or %q)", cfg.Backend, BackendAppInsights, BackendOTLP),
			}
		}
	}

	settings := cfg.settings()
	settings.Logger = c.logger

	collector, err := setup(ctx, settings)
	if err != nil {
		return c.initFailed(cfg.Backend, fmt.Errorf("setup: %w", err))
	}

	autoCollect := cfg.autoCollection()
	if autoCollect != (contracts.AutoCollection{}) {
		collector.SetAutoCollection(autoCollect)
	}

	if err := collector.Start(ctx); err != nil {
		if shutdownErr := collector.Shutdown(ctx); shutdownErr != nil {
			c.logger.Debug("shutting down collector after failed start", zap.Error(shutdownErr))
		}
		return c.initFailed(cfg.Backend, fmt.Errorf("start: %w", err))
	}

	if cfg.SamplingPercentage != nil {
		collector.SetSamplingPercentage(*cfg.SamplingPercentage)
	}

	c.collector = collector
	c.backend = cfg.Backend
	c.autoCollect = autoCollect
	c.shutdownTimeout = cfg.ShutdownTimeout
	if cp, ok := collector.(contracts.CoreProvider); ok {
		c.nativeCore = cp.Core()
	}
	c.state = stateInitialized
	c.metrics.initializations.WithLabelValues("ok").Inc()

	c.logger.Info("telemetry client initialized",
		zap.String("backend", cfg.Backend),
		zap.String("service", cfg.ServiceName),
		zap.Bool("auto_collection", autoCollect != (contracts.AutoCollection{})),
	)
	return nil
}

func (c *Client) initFailed(backend string, err error) error {
	c.metrics.initializations.WithLabelValues("init_error").Inc()
	c.logger.Error("telemetry client initialization failed", zap.String("backend", backend), zap.Error(err))
	return &InitializationError{Backend: backend, Err: err}
}

// Initialized reports whether the client is forwarding telemetry.
func (c *Client) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateInitialized
}

// Collector returns the underlying collector, or nil before Initialize.
func (c *Client) Collector() contracts.Collector {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collector
}

// AutoCollection returns the sources collected without explicit calls.
func (c *Client) AutoCollection() contracts.AutoCollection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.autoCollect
}

// TrackEvent records a named event.
func (c *Client) TrackEvent(ctx context.Context, name string, props contracts.Properties) error {
	return c.forward(kindEvent, func(col contracts.Collector) {
		col.TrackEvent(ctx, contracts.Event{Name: name, Properties: props})
	})
}

// TrackMetric records a single measurement.
func (c *Client) TrackMetric(ctx context.Context, name string, value float64, props contracts.Properties) error {
	return c.forward(kindMetric, func(col contracts.Collector) {
		col.TrackMetric(ctx, contracts.Metric{Name: name, Value: value, Properties: props})
	})
}

// TrackException records an error.
func (c *Client) TrackException(ctx context.Context, err error, props contracts.Properties) error {
	return c.forward(kindException, func(col contracts.Collector) {
		col.TrackException(ctx, contracts.Exception{Err: err, Properties: props})
	})
}

// TrackTrace records a diagnostic message.
func (c *Client) TrackTrace(ctx context.Context, message string, severity contracts.Severity, props contracts.Properties) error {
	return c.forward(kindTrace, func(col contracts.Collector) {
		col.TrackTrace(ctx, contracts.Trace{Message: message, Severity: severity, Properties: props})
	})
}

// TrackPageView records a page or screen view.
func (c *Client) TrackPageView(ctx context.Context, name, url string, props contracts.Properties) error {
	return c.forward(kindPageView, func(col contracts.Collector) {
		col.TrackPageView(ctx, contracts.PageView{Name: name, URL: url, Properties: props})
	})
}

// TrackRequest records an inbound request. Middleware calls it for every
// request when request collection is on.
func (c *Client) TrackRequest(ctx context.Context, r contracts.Request) error {
	return c.forward(kindRequest, func(col contracts.Collector) {
		col.TrackRequest(ctx, r)
	})
}

// TrackDependency records an outbound call. Transport calls it for every
// round trip when dependency collection is on.
func (c *Client) TrackDependency(ctx context.Context, d contracts.Dependency) error {
	return c.forward(kindDependency, func(col contracts.Collector) {
		col.TrackDependency(ctx, d)
	})
}

// Flush asks the collector to send buffered telemetry. It does not wait for
// delivery; use Close for that.
func (c *Client) Flush(ctx context.Context) error {
	return c.forward(kindFlush, func(col contracts.Collector) {
		col.Flush(ctx)
	})
}

// Close shuts the collector down, which exports whatever it still
// buffers, waiting at most the configured ShutdownTimeout when ctx has no
// deadline. Closing a client that is not initialized is a no-op.
//
// The client is marked closed before the collector shuts down, so track
// calls made meanwhile return ErrClosed instead of waiting.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateInitialized {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	collector, backend, timeout := c.collector, c.backend, c.shutdownTimeout
	c.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := collector.Shutdown(ctx); err != nil {
		c.logger.Warn("telemetry collector shutdown", zap.Error(err))
		return fmt.Errorf("shutting down %s collector: %w", backend, err)
	}
	c.logger.Debug("telemetry client closed", zap.String("backend", backend))
	return nil
}

// forward runs fn against the collector while holding the read lock, so
// Close cannot shut the collector down underneath a track call.
func (c *Client) forward(kind string, fn func(contracts.Collector)) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != stateInitialized {
		return c.reject(kind)
	}
	fn(c.collector)
	if kind != kindFlush {
		c.metrics.forwarded.WithLabelValues(kind).Inc()
	}
	return nil
}

func (c *Client) reject(kind string) error {
	err := ErrNotInitialized
	if c.state == stateClosed {
		err = ErrClosed
	}
	if kind != kindFlush {
		c.metrics.dropped.WithLabelValues(kind).Inc()
	}
	if c.guardLog.Allow() {
		c.logger.Error("telemetry client not ready, dropping telemetry",
			zap.String("kind", kind),
			zap.Stringer("state", c.state),
		)
	}
	return err
}
