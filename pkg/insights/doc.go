// Package insights is a small telemetry façade. A Client is initialized
// once with a connection descriptor and then records events, metrics,
// exceptions, traces and page views through a collector that owns
// buffering, transport, retry and sampling.
//
// # Lifecycle
//
// A Client starts uninitialized. Track calls made before Initialize succeeds
// are dropped and return ErrNotInitialized; callers may ignore the error.
// Initialize succeeds at most once, and later calls log a warning and keep
// the running collector. Close shuts the collector down, exporting what it
// has buffered within ShutdownTimeout; track calls return ErrClosed from the
// moment Close starts.
//
//	client := insights.New(logger)
//	err := client.Initialize(ctx, insights.Config{
//	    ConnectionString: insights.Secret(os.Getenv("APPLICATIONINSIGHTS_CONNECTION_STRING")),
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	_ = client.TrackEvent(ctx, "checkout.completed", contracts.Properties{"tier": "gold"})
//
// # Backends
//
// Config.Backend picks the collector: "appinsights" ships to Azure
// Application Insights, "otlp" exports over OTLP. Tests and embedders can
// bypass the choice WithSetup.
//
// # Auto-collection
//
// Unless Config.EnableAutoCollection is false, the client collects:
//   - requests and handler panics through Middleware
//   - outbound HTTP calls through Transport
//   - Go runtime statistics, gathered by the collector
//   - log entries through Core
//
// # Errors
//
// Initialize returns a *ConfigurationError (errors.Is ErrConfiguration) for
// unusable configuration, including malformed credentials, and an
// *InitializationError when the collector fails to set up or start.
package insights
