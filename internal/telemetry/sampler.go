package telemetry

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"go.opentelemetry.io/otel/sdk/trace"
)

// ratioSampler is a TraceIDRatioBased sampler whose ratio can be replaced
// while the tracer provider is running.
type ratioSampler struct {
	ratio   atomic.Uint64 // math.Float64bits
	sampler atomic.Pointer[trace.Sampler]
}

var _ trace.Sampler = (*ratioSampler)(nil)

func newRatioSampler(ratio float64) *ratioSampler {
	s := &ratioSampler{}
	s.SetRatio(ratio)
	return s
}

// SetRatio clamps ratio to [0, 1] and swaps the delegate sampler.
func (s *ratioSampler) SetRatio(ratio float64) {
	ratio = math.Max(0, math.Min(1, ratio))

	var delegate trace.Sampler
	switch {
	case ratio >= 1:
		delegate = trace.AlwaysSample()
	case ratio <= 0:
		delegate = trace.NeverSample()
	default:
		delegate = trace.TraceIDRatioBased(ratio)
	}
	s.sampler.Store(&delegate)
	s.ratio.Store(math.Float64bits(ratio))
}

func (s *ratioSampler) Ratio() float64 {
	return math.Float64frombits(s.ratio.Load())
}

func (s *ratioSampler) ShouldSample(p trace.SamplingParameters) trace.SamplingResult {
	return (*s.sampler.Load()).ShouldSample(p)
}

func (s *ratioSampler) Description() string {
	return fmt.Sprintf("InsightsRatioSampler{%g}", s.Ratio())
}

// keep makes the same decision for records that have no trace id.
func (s *ratioSampler) keep() bool {
	r := s.Ratio()
	switch {
	case r >= 1:
		return true
	case r <= 0:
		return false
	}
	return rand.Float64() < r
}
