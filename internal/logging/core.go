package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the console side of a Logger. The telemetry side is
// attached later with WithTelemetry, once a collector exists.
func newLogger(cfg *Config, console io.Writer) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rules, err := newRedactor(cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to compile redaction rules: %w", err)
	}

	core := zapcore.NewNopCore()
	if cfg.Output.Console {
		encoder := &RedactingEncoder{Encoder: newEncoder(cfg.Format), redactor: rules}
		core = zapcore.NewCore(encoder, zapcore.AddSync(console), cfg.Level)
	}

	opts := []zap.Option{}
	if cfg.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip))
	}
	if cfg.Stacktrace.Level != 0 {
		opts = append(opts, zap.AddStacktrace(cfg.Stacktrace.Level))
	}

	zapLogger := zap.New(newSampledCore(core, cfg.Sampling), opts...).With(cfg.constantFields()...)
	return &Logger{zap: zapLogger, config: cfg, rules: rules}, nil
}

// WithTelemetry returns a logger that also forwards entries to core, usually
// the insights client's console core. The forwarded branch gets the
// console's level, redaction rules, sampling budgets and constant fields.
// Fields attached to l before the call reach the console only.
//
// It returns l when core is nil or Output.Telemetry is off. Loggers handed
// to the insights client must not be derived from the result, or the
// client's own diagnostics would be tracked as traces.
func (l *Logger) WithTelemetry(core zapcore.Core) *Logger {
	if core == nil || !l.config.Output.Telemetry {
		return l
	}

	forward := redact(atLeast(core, l.config.Level), l.rules).With(l.config.constantFields())
	forward = newSampledCore(forward, l.config.Sampling)
	return &Logger{
		zap: l.zap.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, forward)
		})),
		config: l.config,
		rules:  l.rules,
	}
}
