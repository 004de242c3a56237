package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/insightkit/internal/connstr"
	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

const (
	// DefaultEndpoint is the OTLP collector address used when settings name
	// none.
	DefaultEndpoint = "localhost:4317"

	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"

	defaultExportInterval = 10 * time.Second
	defaultMaxBatchSize   = 512
)

// Config holds exporter configuration derived from collector settings.
type Config struct {
	Endpoint           string
	Protocol           string
	Insecure           bool // Use insecure connection (no TLS)
	ServiceName        string
	ServiceVersion     string
	InstrumentationKey string
	ExportInterval     time.Duration
	MaxBatchSize       int
}

// configFromSettings builds a Config. The connection string is only
// consulted for its instrumentation key, which becomes a resource attribute.
// A descriptor that does not fully parse is not an error here; what could
// not be used comes back as warning.
func configFromSettings(s contracts.Settings) (cfg *Config, warning error, err error) {
	cfg = &Config{
		Endpoint:       s.Endpoint,
		Protocol:       s.Protocol,
		Insecure:       s.Insecure,
		ServiceName:    s.ServiceName,
		ServiceVersion: s.ServiceVersion,
		ExportInterval: s.MaxBatchInterval,
		MaxBatchSize:   s.MaxBatchSize,
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Protocol == "" {
		cfg.Protocol = ProtocolGRPC
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = defaultExportInterval
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}

	cs, csErr := connstr.ResolveLenient(s.ConnectionString, s.InstrumentationKey)
	cfg.InstrumentationKey = cs.InstrumentationKey
	if csErr != nil && !errors.Is(csErr, connstr.ErrMissingCredentials) {
		warning = csErr
	}

	return cfg, warning, cfg.Validate()
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}

	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	}

	// Security: Prevent insecure connections to remote endpoints
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}

	return nil
}

// isLocalEndpoint checks if the endpoint is a local address.
func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)
	raw := host

	// Handle IPv6 addresses (may be bracketed like [::1]:4317)
	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]:"); idx != -1 {
			host = host[1:idx]
		} else if strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
	} else if strings.Count(host, ":") == 1 {
		// IPv4 or hostname with port: localhost:4317
		host = host[:strings.LastIndex(host, ":")]
	}
	// For IPv6 without brackets (::1, ::1:4317), we check the full string

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(raw, "::1")
}
