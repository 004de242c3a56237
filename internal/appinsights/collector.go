// Package appinsights implements a collector that ships telemetry to Azure
// Application Insights through the Application Insights Go SDK.
package appinsights

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/microsoft/ApplicationInsights-Go/appinsights"
	aicontracts "github.com/microsoft/ApplicationInsights-Go/appinsights/contracts"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightkit/internal/connstr"
	"github.com/fyrsmithlabs/insightkit/internal/logging"
	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

const defaultCounterInterval = 15 * time.Second

// telemetryClient is the subset of appinsights.TelemetryClient the collector
// uses.
type telemetryClient interface {
	Track(telemetry appinsights.Telemetry)
	Channel() telemetryChannel
	SetIsEnabled(enabled bool)
}

// telemetryChannel is the subset of appinsights.TelemetryChannel the
// collector uses.
type telemetryChannel interface {
	Flush()
	Close(retryTimeout ...time.Duration) <-chan struct{}
}

// sdkClient adapts appinsights.TelemetryClient to telemetryClient.
type sdkClient struct {
	appinsights.TelemetryClient
}

func (c sdkClient) Channel() telemetryChannel {
	return c.TelemetryClient.Channel()
}

// Collector forwards telemetry records to an Application Insights client.
type Collector struct {
	client   telemetryClient
	logger   *zap.Logger
	listener appinsights.DiagnosticsMessageListener

	autoCollect     contracts.AutoCollection
	counterInterval time.Duration

	// sampling holds math.Float64bits of the sampling percentage.
	sampling atomic.Uint64

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ contracts.Collector = (*Collector)(nil)

// Setup builds a collector from settings. Like the SDK itself it accepts
// any instrumentation key: parts of the connection string that cannot be
// used are logged and replaced by defaults, and ingestion rejects a bad key
// later. Only the absence of both credentials fails.
func Setup(_ context.Context, s contracts.Settings) (contracts.Collector, error) {
	cs, csErr := connstr.ResolveLenient(s.ConnectionString, s.InstrumentationKey)
	if errors.Is(csErr, connstr.ErrMissingCredentials) {
		return nil, csErr
	}
	if s.Endpoint != "" {
		cs.IngestionEndpoint = s.Endpoint
	}

	cfg := appinsights.NewTelemetryConfiguration(cs.InstrumentationKey)
	cfg.EndpointUrl = cs.TrackURL()
	if s.MaxBatchSize > 0 {
		cfg.MaxBatchSize = s.MaxBatchSize
	}
	if s.MaxBatchInterval > 0 {
		cfg.MaxBatchInterval = s.MaxBatchInterval
	}

	client := appinsights.NewTelemetryClientFromConfig(cfg)
	if s.ServiceName != "" {
		client.Context().Tags.Cloud().SetRole(s.ServiceName)
	}
	if s.ServiceVersion != "" {
		client.Context().Tags.Application().SetVer(s.ServiceVersion)
	}

	c := newCollector(sdkClient{client}, s.Logger)
	if csErr != nil {
		c.logger.Warn("connection string partly unusable, sending with defaults",
			logging.ConnectionString("destination", cs),
			zap.Error(csErr),
		)
	}
	c.logger.Debug("collector configured",
		logging.ConnectionString("destination", cs),
		zap.Int("max_batch_size", cfg.MaxBatchSize),
		zap.Duration("max_batch_interval", cfg.MaxBatchInterval),
	)
	c.listener = appinsights.NewDiagnosticsMessageListener(func(msg string) error {
		c.logger.Debug("appinsights diagnostics", zap.String("message", msg))
		return nil
	})
	return c, nil
}

func newCollector(client telemetryClient, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		client:          client,
		logger:          logger.Named("appinsights"),
		counterInterval: defaultCounterInterval,
	}
	c.sampling.Store(math.Float64bits(100))
	return c
}

// SetAutoCollection records which sources to collect. Performance counters
// are gathered by the collector itself once started; the other sources are
// driven by the façade.
func (c *Collector) SetAutoCollection(ac contracts.AutoCollection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoCollect = ac
}

// Start enables the client and, if requested, starts sampling Go runtime
// performance counters.
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("collector already started")
	}
	c.started = true
	c.client.SetIsEnabled(true)

	if c.autoCollect.PerformanceCounters {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.cancel = cancel
		c.done = make(chan struct{})
		counters := newPerformanceCounters(c, c.counterInterval)
		go func() {
			defer close(c.done)
			counters.Run(runCtx)
		}()
	}
	return nil
}

// SetSamplingPercentage sets the share of non-metric telemetry that is
// transmitted. Values are clamped to [0, 100].
func (c *Collector) SetSamplingPercentage(percentage float64) {
	percentage = math.Max(0, math.Min(100, percentage))
	c.sampling.Store(math.Float64bits(percentage))
}

// SamplingPercentage returns the current sampling percentage.
func (c *Collector) SamplingPercentage() float64 {
	return math.Float64frombits(c.sampling.Load())
}

func (c *Collector) sampled() bool {
	p := c.SamplingPercentage()
	switch {
	case p >= 100:
		return true
	case p <= 0:
		return false
	}
	return rand.Float64()*100 < p
}

func (c *Collector) TrackEvent(_ context.Context, e contracts.Event) {
	if !c.sampled() {
		return
	}
	item := appinsights.NewEventTelemetry(e.Name)
	c.track(item, e.Properties)
}

// TrackMetric is never sampled; aggregates would be skewed otherwise.
func (c *Collector) TrackMetric(_ context.Context, m contracts.Metric) {
	item := appinsights.NewMetricTelemetry(m.Name, m.Value)
	c.track(item, m.Properties)
}

func (c *Collector) TrackException(_ context.Context, e contracts.Exception) {
	if !c.sampled() {
		return
	}
	item := appinsights.NewExceptionTelemetry(e.Err)
	item.SeverityLevel = aicontracts.Error
	c.track(item, e.Properties)
}

func (c *Collector) TrackTrace(_ context.Context, t contracts.Trace) {
	if !c.sampled() {
		return
	}
	item := appinsights.NewTraceTelemetry(t.Message, severityLevel(t.Severity))
	c.track(item, t.Properties)
}

func (c *Collector) TrackPageView(_ context.Context, p contracts.PageView) {
	if !c.sampled() {
		return
	}
	item := appinsights.NewPageViewTelemetry(p.Name, p.URL)
	c.track(item, p.Properties)
}

func (c *Collector) TrackRequest(_ context.Context, r contracts.Request) {
	if !c.sampled() {
		return
	}
	item := appinsights.NewRequestTelemetry(r.Method, r.URL, r.Duration, strconv.Itoa(r.ResponseCode))
	if r.Name != "" {
		item.Name = r.Name
	}
	item.Success = r.Success
	c.track(item, r.Properties)
}

func (c *Collector) TrackDependency(_ context.Context, d contracts.Dependency) {
	if !c.sampled() {
		return
	}
	item := appinsights.NewRemoteDependencyTelemetry(d.Name, d.Type, d.Target, d.Success)
	item.Data = d.Data
	item.ResultCode = d.ResultCode
	item.Duration = d.Duration
	c.track(item, d.Properties)
}

// Flush asks the channel to send buffered items. The channel submits in the
// background; this does not wait.
func (c *Collector) Flush(_ context.Context) {
	c.client.Channel().Flush()
}

// Shutdown stops performance counter collection, closes the channel and
// waits until buffered items are sent or ctx is done.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if c.listener != nil {
		c.listener.Remove()
	}

	var retry []time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		retry = append(retry, time.Until(deadline))
	}

	select {
	case <-c.client.Channel().Close(retry...):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("closing appinsights channel: %w", ctx.Err())
	}
}

func (c *Collector) track(item appinsights.Telemetry, props contracts.Properties) {
	if len(props) > 0 {
		dst := item.GetProperties()
		for k, v := range props {
			dst[k] = v
		}
	}
	c.client.Track(item)
}

func severityLevel(s contracts.Severity) aicontracts.SeverityLevel {
	switch s {
	case contracts.Verbose:
		return aicontracts.Verbose
	case contracts.Warning:
		return aicontracts.Warning
	case contracts.Error:
		return aicontracts.Error
	case contracts.Critical:
		return aicontracts.Critical
	default:
		return aicontracts.Information
	}
}
