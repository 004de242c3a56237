// Package logging provides structured logging for insightkit binaries.
//
// # Overview
//
// Logging package wraps Zap with:
//   - A Verbose level (-2, below Debug) matching the Verbose trace severity
//   - Console output on stderr, optionally teed into the telemetry collector
//   - Automatic context field injection (trace_id, operation.id, request.id)
//   - Secret redaction, including connection strings and instrumentation keys
//   - Per-level sampling budgets (errors never sampled)
//
// # Usage
//
// Create logger from the operator configuration:
//
//	cfg, err := logging.FromAppConfig(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Forward application logs as traces once an insights client exists. The
// forwarded branch is redacted and sampled like the console, and is only
// attached when Output.Telemetry is set. The client itself keeps the
// un-teed logger:
//
//	client := insights.New(logger.Underlying())
//	appLogger := logger.WithTelemetry(client.Core())
//
// Output includes automatic correlation:
//
//	{
//	  "ts": "2026-10-19T10:15:30Z",
//	  "level": "info",
//	  "msg": "request processed",
//	  "trace_id": "abc123",
//	  "operation.id": "9b2f...",
//	  "duration": "45ms"
//	}
//
// # Secret Redaction
//
// config.Secret values are logged with Secret, and resolved connection
// strings with ConnectionString, which keeps only the endpoints and the
// first group of the instrumentation key. Both outputs also replace fields
// named in Redaction.Fields and rewrite Redaction.Patterns matches in
// messages and string values.
//
// # Sampling
//
// Each level below Error gets its own sampler. The defaults keep the first
// 100 Info entries per message per second, then 1 in 10.
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertSeverity(t, "test message", contracts.Information)
//	tl.AssertNoSecrets(t)
package logging
