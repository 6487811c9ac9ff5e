package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unknownOperationLabel replaces caller-supplied names that match no
// operation, keeping label cardinality bounded.
const unknownOperationLabel = "_unknown"

// Metrics holds the dispatcher's Prometheus collectors.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantrpc_calls_total",
				Help: "Total number of dispatched calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tenantrpc_call_duration_seconds",
				Help:    "Call duration in seconds from lookup to encode",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tenantrpc_calls_in_flight",
				Help: "Number of calls currently being dispatched",
			},
		),
	}
}

func (m *Metrics) observe(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(operation, outcome).Inc()
	m.Duration.WithLabelValues(operation).Observe(seconds)
}
