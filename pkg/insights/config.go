package insights

import (
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/insightkit/internal/appinsights"
	"github.com/fyrsmithlabs/insightkit/internal/config"
	"github.com/fyrsmithlabs/insightkit/internal/telemetry"
	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// Backend names.
const (
	BackendAppInsights = "appinsights"
	BackendOTLP        = "otlp"
)

const (
	defaultServiceName     = "insightkit"
	defaultServiceVersion  = "0.1.0"
	defaultShutdownTimeout = 5 * time.Second
)

var backends = map[string]contracts.SetupFunc{
	BackendAppInsights: appinsights.Setup,
	BackendOTLP:        telemetry.Setup,
}

// Secret is a credential string that never prints its value.
type Secret = config.Secret

// Config is the input to Initialize.
//
// At least one of ConnectionString and InstrumentationKey must be set. When
// both are, the connection string wins and the key only fills in a missing
// InstrumentationKey entry.
type Config struct {
	ConnectionString   Secret
	InstrumentationKey Secret

	// EnableAutoCollection defaults to true; only an explicit false turns
	// request, exception, dependency, performance counter and console
	// collection off.
	EnableAutoCollection *bool
	// SamplingPercentage is applied to the collector after it starts. Nil
	// leaves the collector default (100).
	SamplingPercentage *float64

	// Backend selects the collector: "appinsights" (default) or "otlp".
	// Ignored when the client was built WithSetup.
	Backend string

	ServiceName    string
	ServiceVersion string

	// Endpoint overrides the ingestion endpoint (otlp: host:port).
	Endpoint string
	// Protocol is "grpc" (default) or "http/protobuf"; otlp only.
	Protocol string
	// Insecure disables TLS; otlp only and local endpoints only.
	Insecure bool

	MaxBatchSize     int
	MaxBatchInterval time.Duration
	// ShutdownTimeout bounds Close when ctx has no deadline.
	ShutdownTimeout time.Duration
}

// Bool returns a pointer to b, for Config.EnableAutoCollection.
func Bool(b bool) *bool { return &b }

// Float64 returns a pointer to f, for Config.SamplingPercentage.
func Float64(f float64) *float64 { return &f }

// FromAppConfig converts the file/environment configuration.
func FromAppConfig(tc config.TelemetryConfig) Config {
	return Config{
		ConnectionString:     tc.ConnectionString,
		InstrumentationKey:   tc.InstrumentationKey,
		EnableAutoCollection: tc.EnableAutoCollection,
		SamplingPercentage:   tc.SamplingPercentage,
		Backend:              tc.Backend,
		ServiceName:          tc.ServiceName,
		ServiceVersion:       tc.ServiceVersion,
		Endpoint:             tc.Endpoint,
		Protocol:             tc.Protocol,
		Insecure:             tc.Insecure,
		MaxBatchSize:         tc.MaxBatchSize,
		MaxBatchInterval:     tc.MaxBatchInterval.Duration(),
		ShutdownTimeout:      tc.ShutdownTimeout.Duration(),
	}
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendAppInsights
	}
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = defaultServiceVersion
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
}

// validate checks what can be checked without the collector. Only missing
// credentials are a configuration error; credential syntax is the
// collector's business.
func (c *Config) validate() error {
	if strings.TrimSpace(c.ConnectionString.Value()) == "" && strings.TrimSpace(c.InstrumentationKey.Value()) == "" {
		return &ConfigurationError{
			Field:  "connection_string",
			Reason: "a connection string or instrumentation key is required",
		}
	}
	if p := c.SamplingPercentage; p != nil && (math.IsNaN(*p) || *p < 0 || *p > 100) {
		return &ConfigurationError{
			Field:  "sampling_percentage",
			Reason: "must be between 0 and 100",
		}
	}
	if c.MaxBatchSize < 0 {
		return &ConfigurationError{Field: "max_batch_size", Reason: "must not be negative"}
	}
	return nil
}

func (c *Config) autoCollection() contracts.AutoCollection {
	if c.EnableAutoCollection != nil && !*c.EnableAutoCollection {
		return contracts.AutoCollection{}
	}
	return contracts.AllAutoCollection()
}

func (c *Config) settings() contracts.Settings {
	return contracts.Settings{
		ConnectionString:   c.ConnectionString.Value(),
		InstrumentationKey: c.InstrumentationKey.Value(),
		Endpoint:           c.Endpoint,
		ServiceName:        c.ServiceName,
		ServiceVersion:     c.ServiceVersion,
		Protocol:           c.Protocol,
		Insecure:           c.Insecure,
		MaxBatchSize:       c.MaxBatchSize,
		MaxBatchInterval:   c.MaxBatchInterval,
	}
}
