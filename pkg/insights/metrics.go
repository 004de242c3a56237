package insights

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry kinds used as the "kind" label.
const (
	kindEvent      = "event"
	kindMetric     = "metric"
	kindException  = "exception"
	kindTrace      = "trace"
	kindPageView   = "pageview"
	kindRequest    = "request"
	kindDependency = "dependency"
	kindFlush      = "flush"
)

// clientMetrics are the client's own Prometheus metrics.
//
// Metrics:
//   - insightkit_forwarded_total{kind} - records handed to the collector
//   - insightkit_dropped_total{kind} - records rejected by the lifecycle guard
//   - insightkit_initializations_total{result} - Initialize outcomes
type clientMetrics struct {
	forwarded       *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	initializations *prometheus.CounterVec
}

// newClientMetrics creates the metrics and registers them with reg, which
// may be nil. Clients sharing a registerer share the underlying counters.
func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	return &clientMetrics{
		forwarded: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insightkit_forwarded_total",
				Help: "Total number of telemetry records forwarded to the collector",
			},
			[]string{"kind"},
		)),
		dropped: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insightkit_dropped_total",
				Help: "Total number of telemetry records dropped because the client was not initialized or already closed",
			},
			[]string{"kind"},
		)),
		initializations: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insightkit_initializations_total",
				Help: "Total number of Initialize calls by result",
			},
			[]string{"result"}, // "ok", "skipped", "config_error", "init_error"
		)),
	}
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
