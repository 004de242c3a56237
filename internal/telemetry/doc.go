// Package telemetry implements the OTLP collector backend.
//
// # Signal mapping
//
// Records are translated into OpenTelemetry signals and exported to an OTLP
// endpoint (an OpenTelemetry Collector, or anything speaking OTLP):
//
//	Event       log record, event name set, severity INFO
//	Trace       log record, severity mapped from contracts.Severity
//	Metric      float64 histogram, one instrument per metric name
//	Exception   span "exception" with status Error and a recorded error
//	PageView    client span named after the page
//	Request     server span back-dated by the request duration
//	Dependency  client span back-dated by the call duration
//
// Every signal carries a resource with service.name, service.version and,
// when the connection string names one, instrumentation.key.
//
// # Sampling
//
// Spans use a parent-based sampler around a ratio sampler whose ratio is
// replaced by SetSamplingPercentage. Log records make the same decision
// independently; metrics are never sampled.
//
// # Configuration
//
//	telemetry:
//	  backend: otlp
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  insecure: true          # local endpoints only
//	  max_batch_interval: 10s
//
// # Testing
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry(zaptest.NewLogger(t))
//	tt.TrackException(ctx, contracts.Exception{Err: err})
//	tt.AssertSpanExists(t, "exception")
package telemetry
