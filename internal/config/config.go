// Package config provides configuration loading for insightkit binaries.
//
// Values are resolved from hardcoded defaults, then an optional YAML file,
// then the environment. The standard Application Insights variables
// (APPLICATIONINSIGHTS_CONNECTION_STRING, APPINSIGHTS_INSTRUMENTATIONKEY) are
// honoured alongside INSIGHTS_<SECTION>_<FIELD> overrides.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete insightkit process configuration.
type Config struct {
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
}

// TelemetryConfig holds the collector connection and collection toggles.
type TelemetryConfig struct {
	ConnectionString     Secret   `koanf:"connection_string"`
	InstrumentationKey   Secret   `koanf:"instrumentation_key"`
	EnableAutoCollection *bool    `koanf:"enable_auto_collection"`
	SamplingPercentage   *float64 `koanf:"sampling_percentage"`

	Backend          string   `koanf:"backend"`
	ServiceName      string   `koanf:"service_name"`
	ServiceVersion   string   `koanf:"service_version"`
	Endpoint         string   `koanf:"endpoint"`
	Protocol         string   `koanf:"protocol"`
	Insecure         bool     `koanf:"insecure"`
	MaxBatchSize     int      `koanf:"max_batch_size"`
	MaxBatchInterval Duration `koanf:"max_batch_interval"`
	ShutdownTimeout  Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Telemetry tees application logs into the collector as traces.
	Telemetry bool `koanf:"telemetry"`
}

// ServerConfig holds the demo HTTP server configuration.
type ServerConfig struct {
	Addr            string   `koanf:"addr"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// NewDefaultConfig returns configuration with defaults applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Telemetry.Backend == "" {
		cfg.Telemetry.Backend = "appinsights"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "insightkit"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.MaxBatchSize == 0 {
		cfg.Telemetry.MaxBatchSize = 1024
	}
	if cfg.Telemetry.MaxBatchInterval == 0 {
		cfg.Telemetry.MaxBatchInterval = Duration(10 * time.Second)
	}
	if cfg.Telemetry.ShutdownTimeout == 0 {
		cfg.Telemetry.ShutdownTimeout = Duration(5 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
}

// Validate checks the configuration for values that can never work.
// Credential presence is not checked here: the telemetry client reports
// missing credentials itself so that callers see a single error type.
func (c *Config) Validate() error {
	switch c.Telemetry.Backend {
	case "appinsights", "otlp":
	default:
		return fmt.Errorf("telemetry.backend must be 'appinsights' or 'otlp', got %q", c.Telemetry.Backend)
	}

	if p := c.Telemetry.SamplingPercentage; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("telemetry.sampling_percentage must be between 0 and 100, got %v", *p)
	}

	if c.Telemetry.MaxBatchSize < 0 {
		return errors.New("telemetry.max_batch_size cannot be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	return nil
}
