package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// ScopeName is the instrumentation scope for everything the collector emits.
const ScopeName = "github.com/fyrsmithlabs/insightkit"

// Attribute keys for data without a semantic convention.
const (
	KindAttr           = attribute.Key("insights.kind")
	DependencyTypeAttr = attribute.Key("insights.dependency.type")
	DependencyDataAttr = attribute.Key("insights.dependency.data")
	ResultCodeAttr     = attribute.Key("insights.result_code")
)

const flushTimeout = 30 * time.Second

// Collector maps insightkit records onto OpenTelemetry signals:
// events and traces are log records, metrics are histograms, and
// exceptions, page views, requests and dependencies are spans.
//
// Telemetry failures never reach the caller; export errors are logged.
type Collector struct {
	logger *zap.Logger

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	sampler        *ratioSampler

	tracer     oteltrace.Tracer
	meter      metric.Meter
	otelLogger otellog.Logger

	mu          sync.Mutex
	autoCollect contracts.AutoCollection
	started     bool
	histograms  map[string]metric.Float64Histogram

	// flushCtx is cancelled by Shutdown and bounds background flushes.
	flushCtx      context.Context
	cancelFlushes context.CancelFunc
	flushes       sync.WaitGroup
}

var (
	_ contracts.Collector    = (*Collector)(nil)
	_ contracts.CoreProvider = (*Collector)(nil)
)

// Setup builds OTLP exporters and providers from settings. Exporters connect
// lazily, so an unreachable collector is not a setup failure.
func Setup(ctx context.Context, s contracts.Settings) (contracts.Collector, error) {
	cfg, warning, err := configFromSettings(s)
	if err != nil {
		return nil, fmt.Errorf("invalid otlp config: %w", err)
	}
	if warning != nil && s.Logger != nil {
		s.Logger.Named("otlp").Warn("connection string partly unusable, exporting anyway",
			zap.String("endpoint", cfg.Endpoint),
			zap.Error(warning),
		)
	}

	res := newResource(cfg)
	sampler := newRatioSampler(1)

	tp, err := newTracerProvider(ctx, cfg, res, trace.ParentBased(sampler))
	if err != nil {
		return nil, err
	}
	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}
	lp, err := newLoggerProvider(ctx, cfg, res)
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx), mp.Shutdown(ctx))
	}

	return newCollector(s.Logger, tp, mp, lp, sampler), nil
}

func newCollector(logger *zap.Logger, tp *trace.TracerProvider, mp *sdkmetric.MeterProvider, lp *sdklog.LoggerProvider, sampler *ratioSampler) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	flushCtx, cancelFlushes := context.WithCancel(context.Background())
	return &Collector{
		flushCtx:       flushCtx,
		cancelFlushes:  cancelFlushes,
		logger:         logger.Named("otlp"),
		tracerProvider: tp,
		meterProvider:  mp,
		loggerProvider: lp,
		sampler:        sampler,
		tracer:         tp.Tracer(ScopeName),
		meter:          mp.Meter(ScopeName),
		otelLogger:     lp.Logger(ScopeName),
		histograms:     make(map[string]metric.Float64Histogram),
	}
}

// MeterProvider exposes the collector's meter provider so other
// instrumentation in the process exports through the same pipeline.
func (c *Collector) MeterProvider() metric.MeterProvider {
	return c.meterProvider
}

func (c *Collector) SetAutoCollection(ac contracts.AutoCollection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoCollect = ac
}

// Start begins runtime metric collection when performance counters are
// enabled. The runtime instrumentation cannot be stopped; it goes quiet when
// the meter provider shuts down.
func (c *Collector) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("collector already started")
	}
	c.started = true

	if c.autoCollect.PerformanceCounters {
		if err := runtime.Start(runtime.WithMeterProvider(c.meterProvider)); err != nil {
			return fmt.Errorf("starting runtime instrumentation: %w", err)
		}
	}
	return nil
}

// SetSamplingPercentage replaces the sampler ratio. Metrics are not sampled.
func (c *Collector) SetSamplingPercentage(percentage float64) {
	c.sampler.SetRatio(percentage / 100)
}

// SamplingPercentage returns the current sampling percentage.
func (c *Collector) SamplingPercentage() float64 {
	return c.sampler.Ratio() * 100
}

// Core returns a zap core that bridges log entries into the OTel log
// pipeline with trace correlation.
func (c *Collector) Core() zapcore.Core {
	return otelzap.NewCore(ScopeName, otelzap.WithLoggerProvider(c.loggerProvider))
}

func (c *Collector) TrackEvent(ctx context.Context, e contracts.Event) {
	if !c.sampler.keep() {
		return
	}
	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetEventName(e.Name)
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue(e.Name))
	rec.AddAttributes(otellog.String(string(KindAttr), "event"))
	rec.AddAttributes(logAttributes(e.Properties)...)
	c.otelLogger.Emit(ctx, rec)
}

func (c *Collector) TrackTrace(ctx context.Context, t contracts.Trace) {
	if !c.sampler.keep() {
		return
	}
	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(logSeverity(t.Severity))
	rec.SetSeverityText(t.Severity.String())
	rec.SetBody(otellog.StringValue(t.Message))
	rec.AddAttributes(otellog.String(string(KindAttr), "trace"))
	rec.AddAttributes(logAttributes(t.Properties)...)
	c.otelLogger.Emit(ctx, rec)
}

func (c *Collector) TrackMetric(ctx context.Context, m contracts.Metric) {
	h, err := c.histogram(m.Name)
	if err != nil {
		c.logger.Warn("creating histogram", zap.String("metric", m.Name), zap.Error(err))
		return
	}
	h.Record(ctx, m.Value, metric.WithAttributes(attributes(m.Properties)...))
}

func (c *Collector) TrackException(ctx context.Context, e contracts.Exception) {
	err := e.Err
	if err == nil {
		err = errors.New("unknown error")
	}
	_, span := c.tracer.Start(ctx, "exception",
		oteltrace.WithAttributes(KindAttr.String("exception")),
		oteltrace.WithAttributes(attributes(e.Properties)...),
	)
	span.RecordError(err, oteltrace.WithStackTrace(true))
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

func (c *Collector) TrackPageView(ctx context.Context, p contracts.PageView) {
	_, span := c.tracer.Start(ctx, p.Name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(KindAttr.String("pageview"), semconv.URLFull(p.URL)),
		oteltrace.WithAttributes(attributes(p.Properties)...),
	)
	span.End()
}

func (c *Collector) TrackRequest(ctx context.Context, r contracts.Request) {
	end := time.Now()
	name := r.Name
	if name == "" {
		name = r.Method
	}
	_, span := c.tracer.Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithTimestamp(end.Add(-r.Duration)),
		oteltrace.WithAttributes(
			KindAttr.String("request"),
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLFull(r.URL),
			semconv.HTTPResponseStatusCode(r.ResponseCode),
		),
		oteltrace.WithAttributes(attributes(r.Properties)...),
	)
	if !r.Success {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", r.ResponseCode))
	}
	span.End(oteltrace.WithTimestamp(end))
}

func (c *Collector) TrackDependency(ctx context.Context, d contracts.Dependency) {
	end := time.Now()
	_, span := c.tracer.Start(ctx, d.Name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithTimestamp(end.Add(-d.Duration)),
		oteltrace.WithAttributes(
			KindAttr.String("dependency"),
			DependencyTypeAttr.String(d.Type),
			DependencyDataAttr.String(d.Data),
			ResultCodeAttr.String(d.ResultCode),
			semconv.ServerAddress(d.Target),
		),
		oteltrace.WithAttributes(attributes(d.Properties)...),
	)
	if !d.Success {
		span.SetStatus(codes.Error, "dependency failed")
	}
	span.End(oteltrace.WithTimestamp(end))
}

// Flush force-flushes every provider in the background and returns
// immediately. A pending flush gives up after flushTimeout or when the
// collector shuts down.
func (c *Collector) Flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	stop := context.AfterFunc(c.flushCtx, cancel)
	c.flushes.Add(1)
	go func() {
		defer c.flushes.Done()
		defer stop()
		defer cancel()
		if err := c.ForceFlush(ctx); err != nil {
			c.logger.Warn("flushing telemetry", zap.Error(err))
		}
	}()
}

// ForceFlush synchronously exports all pending telemetry.
func (c *Collector) ForceFlush(ctx context.Context) error {
	var errs []error

	if err := c.tracerProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("trace flush: %w", err))
	}
	if err := c.meterProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter flush: %w", err))
	}
	if err := c.loggerProvider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("log flush: %w", err))
	}

	return errors.Join(errs...)
}

// Shutdown cancels outstanding background flushes and shuts down all
// providers, exporting whatever is still buffered. It returns once ctx is
// done even if exports are still being retried.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.cancelFlushes()

	var errs []error

	pending := make(chan struct{})
	go func() {
		c.flushes.Wait()
		close(pending)
	}()
	select {
	case <-pending:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for pending flushes: %w", ctx.Err()))
	}

	if err := c.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
	}
	if err := c.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
	}
	if err := c.loggerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("log provider shutdown: %w", err))
	}

	return errors.Join(errs...)
}

func (c *Collector) histogram(name string) (metric.Float64Histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.histograms[name]; ok {
		return h, nil
	}
	h, err := c.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	c.histograms[name] = h
	return h, nil
}

// attributes converts properties in key order so equal property sets yield
// equal attribute sets.
func attributes(props contracts.Properties) []attribute.KeyValue {
	if len(props) == 0 {
		return nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, len(keys))
	for i, k := range keys {
		attrs[i] = attribute.String(k, props[k])
	}
	return attrs
}

func logAttributes(props contracts.Properties) []otellog.KeyValue {
	attrs := make([]otellog.KeyValue, 0, len(props))
	for k, v := range props {
		attrs = append(attrs, otellog.String(k, v))
	}
	return attrs
}

func logSeverity(s contracts.Severity) otellog.Severity {
	switch s {
	case contracts.Verbose:
		return otellog.SeverityDebug
	case contracts.Warning:
		return otellog.SeverityWarn
	case contracts.Error:
		return otellog.SeverityError
	case contracts.Critical:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}
