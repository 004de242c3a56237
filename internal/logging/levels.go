package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// VerboseLevel sits below Debug. It lines up with the Verbose trace
// severity and is meant for exporter and channel internals.
const VerboseLevel = zapcore.Level(-2)

// LevelFromString parses a zap level name or a trace severity name
// ("verbose", "information", "warning", "critical"), case-insensitively.
func LevelFromString(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "verbose", "trace":
		return VerboseLevel, nil
	case "information":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.DPanicLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
