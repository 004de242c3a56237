// Package connstr parses Application Insights style connection strings.
//
// A connection string is a list of Key=Value pairs separated by semicolons:
//
//	InstrumentationKey=00000000-0000-0000-0000-000000000000;IngestionEndpoint=https://westeurope-5.in.applicationinsights.azure.com/
//
// Keys are case-insensitive and surrounding whitespace is ignored.
package connstr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultIngestionEndpoint is used when the connection string names
	// neither an ingestion endpoint nor an endpoint suffix.
	DefaultIngestionEndpoint = "https://dc.services.visualstudio.com/"

	keyInstrumentationKey = "instrumentationkey"
	keyIngestionEndpoint  = "ingestionendpoint"
	keyLiveEndpoint       = "liveendpoint"
	keyEndpointSuffix     = "endpointsuffix"
	keyLocation           = "location"
)

var (
	// ErrMissingCredentials is returned by Resolve when neither a connection
	// string nor an instrumentation key is supplied.
	ErrMissingCredentials = errors.New("connection string or instrumentation key is required")

	// ErrMissingInstrumentationKey is returned when a connection string has
	// no InstrumentationKey entry and no legacy key is available.
	ErrMissingInstrumentationKey = errors.New("connection string has no InstrumentationKey")

	// ErrInvalid wraps every Resolve failure caused by a malformed
	// connection string or instrumentation key.
	ErrInvalid = errors.New("invalid connection string")
)

// ConnectionString is the parsed form of a connection string.
type ConnectionString struct {
	InstrumentationKey string
	IngestionEndpoint  string
	LiveEndpoint       string
}

// Parse parses s. Unknown keys are ignored; a malformed segment or an
// invalid endpoint URL is an error.
func Parse(s string) (ConnectionString, error) {
	values, problems := segments(s)
	if len(problems) > 0 {
		return ConnectionString{}, problems[0]
	}
	cs, problems := fromValues(values)
	if len(problems) > 0 {
		return ConnectionString{}, problems[0]
	}
	return cs, nil
}

// Resolve applies the credential precedence: a connection string wins over
// the legacy instrumentation key, which only fills in a missing
// InstrumentationKey entry. The resulting key must be a UUID.
func Resolve(connectionString, instrumentationKey string) (ConnectionString, error) {
	connectionString = strings.TrimSpace(connectionString)
	instrumentationKey = strings.TrimSpace(instrumentationKey)

	if connectionString == "" && instrumentationKey == "" {
		return ConnectionString{}, ErrMissingCredentials
	}

	cs := ConnectionString{IngestionEndpoint: DefaultIngestionEndpoint}
	if connectionString != "" {
		parsed, err := Parse(connectionString)
		if err != nil {
			return ConnectionString{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		cs = parsed
	}
	if cs.InstrumentationKey == "" {
		cs.InstrumentationKey = instrumentationKey
	}
	if cs.InstrumentationKey == "" {
		return ConnectionString{}, ErrMissingInstrumentationKey
	}
	if _, err := uuid.Parse(cs.InstrumentationKey); err != nil {
		return ConnectionString{}, fmt.Errorf("%w: instrumentation key is not a valid GUID: %w", ErrInvalid, err)
	}

	return cs, nil
}

// ResolveLenient is Resolve for collectors that start whatever the
// descriptor looks like. Malformed segments are skipped, an unusable
// endpoint falls back to the default, and a key that is missing or not a
// GUID is kept as is. The returned ConnectionString is always usable; the
// error, wrapping ErrInvalid, lists what was ignored and is meant for a
// warning. Only ErrMissingCredentials comes back with a zero value.
func ResolveLenient(connectionString, instrumentationKey string) (ConnectionString, error) {
	connectionString = strings.TrimSpace(connectionString)
	instrumentationKey = strings.TrimSpace(instrumentationKey)

	if connectionString == "" && instrumentationKey == "" {
		return ConnectionString{}, ErrMissingCredentials
	}

	values, problems := segments(connectionString)
	cs, more := fromValues(values)
	problems = append(problems, more...)
	if cs.IngestionEndpoint == "" {
		cs.IngestionEndpoint = DefaultIngestionEndpoint
	}

	if cs.InstrumentationKey == "" {
		cs.InstrumentationKey = instrumentationKey
	}
	if cs.InstrumentationKey == "" {
		problems = append(problems, ErrMissingInstrumentationKey)
	} else if _, err := uuid.Parse(cs.InstrumentationKey); err != nil {
		problems = append(problems, fmt.Errorf("instrumentation key is not a valid GUID: %w", err))
	}

	if len(problems) > 0 {
		return cs, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(problems...))
	}
	return cs, nil
}

// segments splits s into lower-cased keys and trimmed values. Malformed
// segments are reported and left out.
func segments(s string) (map[string]string, []error) {
	values := make(map[string]string)
	var problems []error
	for _, segment := range strings.Split(s, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			problems = append(problems, fmt.Errorf("malformed connection string segment %q", redactSegment(segment)))
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			problems = append(problems, errors.New("connection string segment has empty key"))
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	return values, problems
}

// fromValues derives endpoints from parsed values. An endpoint that does not
// normalize is reported and left empty.
func fromValues(values map[string]string) (ConnectionString, []error) {
	cs := ConnectionString{
		InstrumentationKey: values[keyInstrumentationKey],
		IngestionEndpoint:  values[keyIngestionEndpoint],
		LiveEndpoint:       values[keyLiveEndpoint],
	}

	if cs.IngestionEndpoint == "" {
		cs.IngestionEndpoint = endpointFromSuffix("dc", values[keyEndpointSuffix], values[keyLocation])
	}
	if cs.LiveEndpoint == "" && values[keyEndpointSuffix] != "" {
		cs.LiveEndpoint = endpointFromSuffix("live", values[keyEndpointSuffix], values[keyLocation])
	}

	var problems []error
	var err error
	if cs.IngestionEndpoint, err = normalizeEndpoint(cs.IngestionEndpoint); err != nil {
		problems = append(problems, fmt.Errorf("invalid IngestionEndpoint: %w", err))
		cs.IngestionEndpoint = ""
	}
	if cs.LiveEndpoint != "" {
		if cs.LiveEndpoint, err = normalizeEndpoint(cs.LiveEndpoint); err != nil {
			problems = append(problems, fmt.Errorf("invalid LiveEndpoint: %w", err))
			cs.LiveEndpoint = ""
		}
	}
	return cs, problems
}

// TrackURL returns the ingestion URL that accepts telemetry envelopes.
func (c ConnectionString) TrackURL() string {
	return strings.TrimSuffix(c.IngestionEndpoint, "/") + "/v2/track"
}

func endpointFromSuffix(prefix, suffix, location string) string {
	if suffix == "" {
		if prefix == "dc" {
			return DefaultIngestionEndpoint
		}
		return ""
	}
	host := prefix + "." + strings.TrimPrefix(suffix, ".")
	if location != "" {
		host = location + "." + host
	}
	return "https://" + host + "/"
}

func normalizeEndpoint(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("endpoint %q must use http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// redactSegment keeps error messages from echoing credentials.
func redactSegment(segment string) string {
	if len(segment) <= 4 {
		return segment
	}
	return segment[:4] + "..."
}
