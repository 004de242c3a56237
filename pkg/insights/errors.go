package insights

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("insights: invalid configuration")

	// ErrNotInitialized is returned by calls made before Initialize
	// succeeded. The telemetry is dropped; callers may ignore the error.
	ErrNotInitialized = errors.New("insights: client not initialized")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("insights: client closed")
)

// ConfigurationError reports a Config that cannot be used. It is returned
// synchronously from Initialize and leaves the client uninitialized.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "insights: invalid configuration"
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InitializationError reports that the collector could not be set up or
// started. The client stays uninitialized and Initialize may be retried.
type InitializationError struct {
	Backend string
	Err     error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("insights: initializing %s collector: %v", e.Backend, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}
