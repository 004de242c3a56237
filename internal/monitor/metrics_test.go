package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsClient(t *testing.T) {
	client := NewMetricsClient("http://localhost:8080/metrics")
	assert.Equal(t, "http://localhost:8080/metrics", client.metricsURL)
	assert.NotNil(t, client.client)
}

// relayRegistry mimics the metrics the relay exposes.
func relayRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()

	forwarded := prometheus.NewCounterVec(prometheus.CounterOpts{Name: forwardedMetric}, []string{"kind"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: droppedMetric}, []string{"kind"})
	inits := prometheus.NewCounterVec(prometheus.CounterOpts{Name: initializationsMetric}, []string{"result"})
	goroutines := prometheus.NewGauge(prometheus.GaugeOpts{Name: goroutinesMetric})
	reg.MustRegister(forwarded, dropped, inits, goroutines)

	forwarded.WithLabelValues("event").Add(10)
	forwarded.WithLabelValues("request").Add(5)
	dropped.WithLabelValues("event").Add(2)
	inits.WithLabelValues("ok").Inc()
	goroutines.Set(17)
	return reg
}

func TestMetricsClient_Scrape(t *testing.T) {
	server := httptest.NewServer(promhttp.HandlerFor(relayRegistry(t), promhttp.HandlerOpts{}))
	defer server.Close()

	sample, err := NewMetricsClient(server.URL).Scrape(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"event": 10, "request": 5}, sample.Forwarded)
	assert.Equal(t, map[string]float64{"event": 2}, sample.Dropped)
	assert.Equal(t, 1.0, sample.Initializations["ok"])
	assert.Equal(t, 17.0, sample.Goroutines)
	assert.Zero(t, sample.HeapBytes)
	assert.False(t, sample.At.IsZero())
}

func TestMetricsClient_Scrape_MissingFamilies(t *testing.T) {
	server := httptest.NewServer(promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	defer server.Close()

	sample, err := NewMetricsClient(server.URL).Scrape(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sample.Forwarded)
	assert.Empty(t, sample.Dropped)
}

func TestMetricsClient_Scrape_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewMetricsClient(server.URL).Scrape(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code 500")
}

func TestMetricsClient_Scrape_InvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is { not metrics\n"))
	}))
	defer server.Close()

	_, err := NewMetricsClient(server.URL).Scrape(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse metrics")
}

func TestMetricsClient_Scrape_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewMetricsClient(server.URL).Scrape(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestMetricsClient_Scrape_Unreachable(t *testing.T) {
	_, err := NewMetricsClient("http://127.0.0.1:1/metrics").Scrape(context.Background())
	assert.Error(t, err)
}

func TestRatePerMinute(t *testing.T) {
	assert.Equal(t, 60.0, ratePerMinute(10, 20, 10*time.Second))
	assert.Zero(t, ratePerMinute(20, 10, 10*time.Second), "counter reset")
	assert.Zero(t, ratePerMinute(10, 20, 0))
}
