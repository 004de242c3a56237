package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

func TestVerboseLevel(t *testing.T) {
	assert.Equal(t, zapcore.Level(-2), VerboseLevel)
	assert.Less(t, VerboseLevel, zapcore.DebugLevel)
	assert.False(t, zapcore.DebugLevel.Enabled(VerboseLevel))
	assert.True(t, VerboseLevel.Enabled(zapcore.DebugLevel))
	assert.Equal(t, contracts.Verbose, contracts.SeverityFromLevel(VerboseLevel))
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"verbose", VerboseLevel},
		{"trace", VerboseLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"information", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"critical", zapcore.DPanicLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
		{"INFO", zapcore.InfoLevel},
		{"Warning", zapcore.WarnLevel},
		{"VERBOSE", VerboseLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := LevelFromString(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

// Every severity name must parse to a level that maps back to it.
func TestLevelFromString_SeverityRoundTrip(t *testing.T) {
	for _, sev := range []contracts.Severity{contracts.Verbose, contracts.Information, contracts.Warning, contracts.Error, contracts.Critical} {
		level, err := LevelFromString(sev.String())
		assert.NoError(t, err)
		assert.Equal(t, sev, contracts.SeverityFromLevel(level), sev.String())
	}
}

func TestLevelFromString_Invalid(t *testing.T) {
	for _, input := range []string{"invalid", "123", "info extra", "info@123"} {
		t.Run(input, func(t *testing.T) {
			level, err := LevelFromString(input)
			assert.Error(t, err)
			assert.Equal(t, zapcore.InfoLevel, level)
		})
	}
}
