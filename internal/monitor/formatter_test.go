package monitor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected string
	}{
		{"normal", 45.7, "45.7/min"},
		{"zero", 0.0, "0.0/min"},
		{"large", 999.9, "999.9/min"},
		{"very_small", 0.0001, "0.0/min"},
		{"nan", math.NaN(), "NaN/min"},
		{"inf", math.Inf(1), "+Inf/min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatRate(tt.rate))
		})
	}
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "1234", FormatCount(1234))
	assert.Equal(t, "3", FormatCount(2.6))
	assert.Equal(t, "9999", FormatCount(9999))
	assert.Equal(t, "25.0k", FormatCount(25000))
	assert.Equal(t, "3.4M", FormatCount(3_400_000))
}

func TestFormatPercentage(t *testing.T) {
	tests := []struct {
		name     string
		ratio    float64
		expected string
	}{
		{"normal", 0.985, "98.5%"},
		{"zero", 0.0, "0.0%"},
		{"one", 1.0, "100.0%"},
		{"small", 0.012, "1.2%"},
		{"very_small", 0.0003, "0.0%"},
		{"clamped_high", 1.2, "100.0%"},
		{"clamped_low", -0.5, "0.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPercentage(tt.ratio))
		})
	}
}

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		name     string
		bytes    uint64
		expected string
	}{
		{"megabytes", 25690112, "24.5 MB"},
		{"kilobytes", 1024, "1.0 KB"},
		{"bytes", 512, "512 B"},
		{"gigabytes", 1610612736, "1.5 GB"},
		{"zero", 0, "0 B"},
		{"terabytes", 3 << 40, "3.0 TB"},
		{"beyond_largest_unit", 2048 << 40, "2048.0 TB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatMemory(tt.bytes))
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		uptime   time.Duration
		expected string
	}{
		{"hours_and_minutes", 2*time.Hour + 15*time.Minute, "2h 15m"},
		{"only_hours", 2 * time.Hour, "2h 0m"},
		{"only_minutes", 15*time.Minute + 59*time.Second, "15m"},
		{"days", 50*time.Hour + 5*time.Minute, "2d 2h"},
		{"zero", 0, "0m"},
		{"clock_skew", -time.Minute, "0m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUptime(tt.uptime))
		})
	}
}
