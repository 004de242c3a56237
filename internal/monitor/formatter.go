package monitor

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Dashboard cells are narrow, so every formatter keeps to one decimal.

// FormatRate renders a per-minute rate from two relay scrapes.
func FormatRate(perMinute float64) string {
	return strconv.FormatFloat(perMinute, 'f', 1, 64) + "/min"
}

// FormatCount renders a counter, abbreviating from ten thousand up.
func FormatCount(v float64) string {
	switch abs := math.Abs(v); {
	case abs >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 1, 64) + "M"
	case abs >= 1e4:
		return strconv.FormatFloat(v/1e3, 'f', 1, 64) + "k"
	default:
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}
}

// FormatPercentage renders a drop ratio, clamped to [0, 1].
func FormatPercentage(ratio float64) string {
	ratio = math.Max(0, math.Min(1, ratio))
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}

var memoryUnits = []string{"KB", "MB", "GB", "TB"}

// FormatMemory renders heap bytes in powers of 1024.
func FormatMemory(bytes uint64) string {
	if bytes < 1024 {
		return strconv.FormatUint(bytes, 10) + " B"
	}
	v, unit := float64(bytes)/1024, 0
	for v >= 1024 && unit < len(memoryUnits)-1 {
		v /= 1024
		unit++
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + memoryUnits[unit]
}

// FormatUptime renders the relay's age at minute resolution. Negative
// values, from clock skew between relay and dashboard, show as 0m.
func FormatUptime(d time.Duration) string {
	d = max(d, 0).Truncate(time.Minute)
	days := int64(d / (24 * time.Hour))
	hours := int64(d % (24 * time.Hour) / time.Hour)
	minutes := int64(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
