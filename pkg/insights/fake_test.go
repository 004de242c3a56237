package insights

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
)

// fakeCollector records every call in order.
type fakeCollector struct {
	mu       sync.Mutex
	calls    []string
	records  []any
	settings contracts.Settings
	auto     contracts.AutoCollection
	sampling *float64

	startErr    error
	shutdownErr error
	// shutdownGate, when set, holds Shutdown until it is closed or ctx ends.
	shutdownGate chan struct{}
}

var _ contracts.Collector = (*fakeCollector)(nil)

func (f *fakeCollector) record(call string, rec any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if rec != nil {
		f.records = append(f.records, rec)
	}
}

func (f *fakeCollector) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCollector) Records() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.records...)
}

func (f *fakeCollector) SetAutoCollection(ac contracts.AutoCollection) {
	f.mu.Lock()
	f.auto = ac
	f.mu.Unlock()
	f.record("SetAutoCollection", nil)
}

func (f *fakeCollector) Start(context.Context) error {
	f.record("Start", nil)
	return f.startErr
}

func (f *fakeCollector) SetSamplingPercentage(p float64) {
	f.mu.Lock()
	f.sampling = &p
	f.mu.Unlock()
	f.record(fmt.Sprintf("SetSamplingPercentage(%g)", p), nil)
}

func (f *fakeCollector) TrackEvent(_ context.Context, e contracts.Event) {
	f.record("TrackEvent", e)
}

func (f *fakeCollector) TrackMetric(_ context.Context, m contracts.Metric) {
	f.record("TrackMetric", m)
}

func (f *fakeCollector) TrackException(_ context.Context, e contracts.Exception) {
	f.record("TrackException", e)
}

func (f *fakeCollector) TrackTrace(_ context.Context, t contracts.Trace) {
	f.record("TrackTrace", t)
}

func (f *fakeCollector) TrackPageView(_ context.Context, p contracts.PageView) {
	f.record("TrackPageView", p)
}

func (f *fakeCollector) TrackRequest(_ context.Context, r contracts.Request) {
	f.record("TrackRequest", r)
}

func (f *fakeCollector) TrackDependency(_ context.Context, d contracts.Dependency) {
	f.record("TrackDependency", d)
}

func (f *fakeCollector) Flush(context.Context) {
	f.record("Flush", nil)
}

func (f *fakeCollector) Shutdown(ctx context.Context) error {
	f.record("Shutdown", nil)
	if f.shutdownGate != nil {
		select {
		case <-f.shutdownGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.shutdownErr
}

// coreCollector is a fakeCollector with a native zap bridge.
type coreCollector struct {
	*fakeCollector
	core zapcore.Core
}

func (c *coreCollector) Core() zapcore.Core { return c.core }

// fakeSetup returns a SetupFunc handing out col and counting calls.
func fakeSetup(col contracts.Collector, calls *atomic.Int32) contracts.SetupFunc {
	return func(_ context.Context, s contracts.Settings) (contracts.Collector, error) {
		if calls != nil {
			calls.Add(1)
		}
		if fc, ok := col.(*fakeCollector); ok {
			fc.mu.Lock()
			fc.settings = s
			fc.mu.Unlock()
		}
		return col, nil
	}
}
