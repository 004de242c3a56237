package contracts

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Severity is the severity of a Trace.
type Severity int

const (
	Verbose Severity = iota
	Information
	Warning
	Error
	Critical
)

var severityNames = [...]string{"Verbose", "Information", "Warning", "Error", "Critical"}

// String returns the severity name as spelled by the constants, which is
// also the OTLP severity text. ParseSeverity accepts it back.
func (s Severity) String() string {
	if s < Verbose || s > Critical {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name, case-insensitively. "info" and
// "warn" are accepted as aliases.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(name) {
	case "verbose", "debug":
		return Verbose, nil
	case "information", "info", "":
		return Information, nil
	case "warning", "warn":
		return Warning, nil
	case "error":
		return Error, nil
	case "critical", "fatal":
		return Critical, nil
	}
	return Information, fmt.Errorf("unknown severity %q", name)
}

// SeverityFromLevel maps a zap level onto a trace severity.
func SeverityFromLevel(level zapcore.Level) Severity {
	switch {
	case level < zapcore.InfoLevel:
		return Verbose
	case level == zapcore.InfoLevel:
		return Information
	case level == zapcore.WarnLevel:
		return Warning
	case level == zapcore.ErrorLevel:
		return Error
	default:
		return Critical
	}
}
