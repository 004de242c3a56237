package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/insightkit/internal/config"
	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// pipeline builds a Logger the way NewLogger does, with the console going
// to a buffer and, when Output.Telemetry is on, the tee going to an observer.
func pipeline(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer, *observer.ObservedLogs) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := newLogger(cfg, &buf)
	require.NoError(t, err)
	telemetryCore, forwarded := observer.New(VerboseLevel)
	return logger.WithTelemetry(telemetryCore), &buf, forwarded
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		lines = append(lines, m)
	}
	return lines
}

func TestIntegration_FullLoggingPipeline(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = VerboseLevel
	cfg.Output.Telemetry = true
	cfg.Sampling.Enabled = false

	logger, buf, forwarded := pipeline(t, cfg)
	ctx := contracts.WithOperationID(context.Background(), "op_integration_123")
	ctx = WithRequestID(ctx, "req_456")

	logger.Verbose(ctx, "channel tick", zap.Int("queued", 3))
	logger.Debug(ctx, "batch assembled")
	logger.Info(ctx, "batch sent", zap.Duration("duration", 45*time.Millisecond))
	logger.Warn(ctx, "retrying", zap.Int("attempt", 2))
	logger.Error(ctx, "export failed", zap.Error(errors.New("503 from ingestion")))
	logger.With(zap.String("component", "channel")).Named("appinsights").Info(ctx, "child log")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 6)
	for _, line := range lines {
		assert.Equal(t, "op_integration_123", line["operation.id"])
		assert.Equal(t, "req_456", line["request.id"])
	}
	assert.Equal(t, "Level(-2)", lines[0]["level"])
	assert.Equal(t, "503 from ingestion", lines[4]["error"])
	assert.Equal(t, "appinsights", lines[5]["logger"])

	require.Equal(t, 6, forwarded.Len())
	assert.Equal(t, contracts.Verbose, contracts.SeverityFromLevel(forwarded.All()[0].Level))
	assert.Equal(t, contracts.Error, contracts.SeverityFromLevel(forwarded.All()[4].Level))
}

func TestIntegration_TelemetryRespectsLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.WarnLevel
	cfg.Output.Telemetry = true

	logger, buf, forwarded := pipeline(t, cfg)
	logger.Info(context.Background(), "quiet")
	logger.Warn(context.Background(), "loud")

	assert.NotContains(t, buf.String(), "quiet")
	require.Equal(t, 1, forwarded.Len())
	assert.Equal(t, "loud", forwarded.All()[0].Message)
}

func TestIntegration_ContextFieldInjection(t *testing.T) {
	tl := NewTestLogger()

	ctx := contracts.WithOperationID(context.Background(), "op-123")
	ctx = WithRequestID(ctx, "req_123")

	tl.Info(ctx, "request", zap.String("method", "GET"))

	tl.AssertLogged(t, zapcore.InfoLevel, "request")
	tl.AssertOperationID(t, "request", "op-123")
	tl.AssertField(t, "request", "request.id", "req_123")
	tl.AssertField(t, "request", "method", "GET")
	tl.AssertSeverity(t, "request", contracts.Information)
}

func TestIntegration_SecretRedaction(t *testing.T) {
	tl := NewTestLogger()

	tl.Info(context.Background(), "auth",
		Secret("credentials", config.Secret("my-secret-token")),
	)

	tl.AssertLogged(t, zapcore.InfoLevel, "auth")
	tl.AssertNoSecrets(t)
}

func TestIntegration_ConnectionStringRedaction(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false

	cfg.Output.Telemetry = true

	logger, buf, forwarded := pipeline(t, cfg)

	logger.Info(context.Background(), "initializing",
		zap.String("connection_string", "InstrumentationKey="+testIKey),
		zap.String("detail", "using InstrumentationKey="+testIKey),
	)

	out := buf.String()
	require.Contains(t, out, "initializing")
	require.NotContains(t, out, testIKey)

	require.Equal(t, 1, forwarded.Len())
	for key, val := range forwarded.All()[0].ContextMap() {
		assert.NotContains(t, val, testIKey, key)
	}
}

func TestIntegration_Sampling(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Levels = map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 3, Thereafter: 0},
	}

	logger, buf, _ := pipeline(t, cfg)
	for range 10 {
		logger.Info(context.Background(), "event tracked")
		logger.Error(context.Background(), "export failed")
	}

	assert.Equal(t, 3, strings.Count(buf.String(), "event tracked"))
	assert.Equal(t, 10, strings.Count(buf.String(), "export failed"))
}
