package logging

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightkit/internal/config"
)

// Config describes one logger: where entries go and what is stripped or
// thinned out on the way.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects the sinks. Both apply the same level, redaction and
// sampling.
type OutputConfig struct {
	// Console writes encoded entries to stderr, keeping stdout free for
	// command output.
	Console bool `koanf:"console"`
	// Telemetry lets Logger.WithTelemetry forward entries to the
	// collector as traces.
	Telemetry bool `koanf:"telemetry"`
}

// SamplingConfig holds per-level budgets. Error and above are never
// sampled, whatever Levels says.
type SamplingConfig struct {
	Enabled bool                                  `koanf:"enabled"`
	Tick    config.Duration                       `koanf:"tick"`
	Levels  map[zapcore.Level]LevelSamplingConfig `koanf:"levels"`
}

// LevelSamplingConfig keeps the first Initial entries with the same message
// per tick, then every Thereafter-th. Thereafter 0 drops the rest.
type LevelSamplingConfig struct {
	Initial    int `koanf:"initial"`
	Thereafter int `koanf:"thereafter"`
}

type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// RedactionConfig lists field names whose values are always replaced and
// patterns rewritten inside messages and string values.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig logs JSON at Info to stderr only.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Console: true},
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Second),
			Levels:  DefaultLevelSamplingConfig(),
		},
		Caller:     CallerConfig{Enabled: true, Skip: 1},
		Stacktrace: StacktraceConfig{Level: zapcore.ErrorLevel},
		Fields:     map[string]string{"service": "insightkit"},
		Redaction:  defaultRedaction(),
	}
}

// defaultRedaction covers generic credentials plus the two ways an
// Application Insights key reaches a log line.
func defaultRedaction() RedactionConfig {
	return RedactionConfig{
		Enabled: true,
		Fields: []string{
			"password", "secret", "token", "api_key",
			"authorization", "bearer", "credential", "private_key",
			"connection_string", "instrumentation_key",
		},
		Patterns: []string{
			`(?i)bearer\s+\S+`,
			`(?i)api[_-]?key[=:]\s*\S+`,
			`(?i)instrumentationkey\s*=\s*[0-9a-f-]+`,
		},
	}
}

// DefaultLevelSamplingConfig thins chatty levels hardest. Error and above
// have no entry.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		VerboseLevel:       {Initial: 10, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 100, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
		zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("format must be 'json' or 'console', got %q", c.Format))
	}
	if !c.Output.Console && !c.Output.Telemetry {
		errs = append(errs, errors.New("at least one output must be enabled (console or telemetry)"))
	}
	if c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0 {
		errs = append(errs, errors.New("sampling tick must be > 0 when sampling enabled"))
	}
	if c.Caller.Enabled && c.Caller.Skip < 0 {
		errs = append(errs, fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip))
	}
	// The logger compiles the same rules, so a config that validates builds.
	if _, err := newRedactor(c.Redaction); err != nil {
		errs = append(errs, err)
	}
	for _, k := range slices.Sorted(maps.Keys(c.Fields)) {
		switch {
		case k == "":
			errs = append(errs, errors.New("field key cannot be empty"))
		case c.Fields[k] == "":
			errs = append(errs, fmt.Errorf("field %q has empty value", k))
		}
	}
	return errors.Join(errs...)
}

// constantFields renders Fields in key order.
func (c *Config) constantFields() []zap.Field {
	fields := make([]zap.Field, 0, len(c.Fields))
	for _, k := range slices.Sorted(maps.Keys(c.Fields)) {
		fields = append(fields, zap.String(k, c.Fields[k]))
	}
	return fields
}

// FromAppConfig starts from the defaults and applies the operator-facing
// logging section.
func FromAppConfig(app config.LoggingConfig) (*Config, error) {
	level, err := LevelFromString(app.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", app.Level, err)
	}

	cfg := NewDefaultConfig()
	cfg.Level = level
	cfg.Output.Telemetry = app.Telemetry
	if app.Format != "" {
		cfg.Format = app.Format
	}
	return cfg, cfg.Validate()
}
