// Package monitor provides a terminal dashboard for a running insightkit
// relay, fed by its Prometheus endpoint.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

// Metric names scraped from the relay.
const (
	forwardedMetric       = "insightkit_forwarded_total"
	droppedMetric         = "insightkit_dropped_total"
	initializationsMetric = "insightkit_initializations_total"
	goroutinesMetric      = "go_goroutines"
	heapMetric            = "go_memstats_heap_alloc_bytes"
	startTimeMetric       = "process_start_time_seconds"
)

// MetricsClient scrapes a Prometheus text endpoint.
type MetricsClient struct {
	metricsURL string
	client     *http.Client
}

// Sample is one scrape of the relay's metrics.
type Sample struct {
	At time.Time

	// Counters keyed by telemetry kind.
	Forwarded map[string]float64
	Dropped   map[string]float64
	// Initialize outcomes keyed by result.
	Initializations map[string]float64

	Goroutines float64
	HeapBytes  float64
	// StartTime is the process start in Unix seconds, zero if unknown.
	StartTime float64
}

// NewMetricsClient creates a new metrics client
func NewMetricsClient(metricsURL string) *MetricsClient {
	return &MetricsClient{
		metricsURL: metricsURL,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Scrape fetches and parses the endpoint.
func (c *MetricsClient) Scrape(ctx context.Context) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metricsURL, nil)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := c.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sample{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to parse metrics: %w", err)
	}

	return sampleFromFamilies(families, time.Now()), nil
}

func sampleFromFamilies(families map[string]*dto.MetricFamily, at time.Time) Sample {
	return Sample{
		At:              at,
		Forwarded:       counterByLabel(families[forwardedMetric], "kind"),
		Dropped:         counterByLabel(families[droppedMetric], "kind"),
		Initializations: counterByLabel(families[initializationsMetric], "result"),
		Goroutines:      gaugeValue(families[goroutinesMetric]),
		HeapBytes:       gaugeValue(families[heapMetric]),
		StartTime:       gaugeValue(families[startTimeMetric]),
	}
}

// counterByLabel sums a counter family's series by one label.
func counterByLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		var key string
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += m.GetCounter().GetValue()
	}
	return out
}

// gaugeValue returns the first series of a gauge family, or zero.
func gaugeValue(mf *dto.MetricFamily) float64 {
	if mf == nil || len(mf.GetMetric()) == 0 {
		return 0
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func total(m map[string]float64) float64 {
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum
}

// ratePerMinute converts the growth of a counter between two samples into a
// per-minute rate. Counter resets yield zero.
func ratePerMinute(prev, cur float64, elapsed time.Duration) float64 {
	if elapsed <= 0 || cur < prev {
		return 0
	}
	return (cur - prev) / elapsed.Minutes()
}
