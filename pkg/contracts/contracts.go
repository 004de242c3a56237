// Package contracts defines the telemetry records and the collector client
// contract shared by the insights façade and its backends.
//
// A Collector is the component that buffers and transmits telemetry to a
// remote analytics backend. The façade never transforms records: it hands
// each one to the collector exactly as the caller supplied it.
package contracts

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Properties are custom dimensions attached to a telemetry record.
type Properties map[string]string

// Event is a named occurrence, e.g. "checkout.completed".
type Event struct {
	Name       string
	Properties Properties
}

// Metric is a single numeric measurement.
type Metric struct {
	Name       string
	Value      float64
	Properties Properties
}

// Exception is an error observed by the application.
type Exception struct {
	Err        error
	Properties Properties
}

// Trace is a diagnostic log message.
type Trace struct {
	Message    string
	Severity   Severity
	Properties Properties
}

// PageView is a page or screen displayed to a user.
type PageView struct {
	Name       string
	URL        string
	Properties Properties
}

// Request is an inbound request handled by the application.
type Request struct {
	Name         string
	Method       string
	URL          string
	ResponseCode int
	Duration     time.Duration
	Success      bool
	Properties   Properties
}

// Dependency is an outbound call made by the application.
type Dependency struct {
	Name       string
	Type       string
	Target     string
	Data       string
	ResultCode string
	Duration   time.Duration
	Success    bool
	Properties Properties
}

// AutoCollection selects which telemetry is gathered without explicit calls.
type AutoCollection struct {
	Requests            bool
	PerformanceCounters bool
	Exceptions          bool
	Dependencies        bool
	Console             bool
}

// AllAutoCollection enables every auto-collection source.
func AllAutoCollection() AutoCollection {
	return AutoCollection{
		Requests:            true,
		PerformanceCounters: true,
		Exceptions:          true,
		Dependencies:        true,
		Console:             true,
	}
}

// Settings is everything a collector needs to connect to its backend.
//
// The connection descriptor is passed through unparsed; interpreting it is
// part of collector setup, so a malformed descriptor surfaces as a setup
// failure.
type Settings struct {
	ConnectionString   string
	InstrumentationKey string
	// Endpoint overrides the ingestion endpoint. For OTLP it is host:port.
	Endpoint string

	ServiceName    string
	ServiceVersion string

	// OTLP transport, ignored by other backends.
	Protocol string
	Insecure bool

	MaxBatchSize     int
	MaxBatchInterval time.Duration

	Logger *zap.Logger
}

// Collector is the underlying telemetry client the façade forwards to.
//
// Track methods must not block on network I/O; delivery is the collector's
// business. Flush requests delivery of buffered telemetry and returns
// without waiting for it.
type Collector interface {
	SetAutoCollection(AutoCollection)
	Start(ctx context.Context) error
	SetSamplingPercentage(percentage float64)

	TrackEvent(ctx context.Context, e Event)
	TrackMetric(ctx context.Context, m Metric)
	TrackException(ctx context.Context, e Exception)
	TrackTrace(ctx context.Context, t Trace)
	TrackPageView(ctx context.Context, p PageView)
	TrackRequest(ctx context.Context, r Request)
	TrackDependency(ctx context.Context, d Dependency)

	Flush(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// SetupFunc constructs a collector from settings. It corresponds to the
// "setup" step of the collector lifecycle; Start is called separately.
type SetupFunc func(ctx context.Context, s Settings) (Collector, error)

// CoreProvider is implemented by collectors that ship a native zap bridge
// for console auto-collection.
type CoreProvider interface {
	Core() zapcore.Core
}
