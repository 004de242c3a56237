package appinsights

import (
	"context"
	"runtime"
	"time"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// performanceCounters periodically samples Go runtime statistics and tracks
// them as metrics.
type performanceCounters struct {
	collector *Collector
	interval  time.Duration
}

func newPerformanceCounters(c *Collector, interval time.Duration) *performanceCounters {
	if interval <= 0 {
		interval = defaultCounterInterval
	}
	return &performanceCounters{collector: c, interval: interval}
}

// Run collects immediately and then on every tick until ctx is done.
func (p *performanceCounters) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collect(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collect(ctx)
		}
	}
}

func (p *performanceCounters) collect(ctx context.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	samples := []contracts.Metric{
		{Name: "go_goroutines", Value: float64(runtime.NumGoroutine())},
		{Name: "go_memory_heap_bytes", Value: float64(m.HeapAlloc)},
		{Name: "go_memory_stack_bytes", Value: float64(m.StackInuse)},
		{Name: "go_memory_sys_bytes", Value: float64(m.Sys)},
		{Name: "go_gc_count", Value: float64(m.NumGC)},
		{Name: "go_gc_pause_seconds", Value: time.Duration(m.PauseTotalNs).Seconds()},
	}
	for _, s := range samples {
		p.collector.TrackMetric(ctx, s)
	}
}
