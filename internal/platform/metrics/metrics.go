package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the sync core.
type Metrics struct {
	SnapshotsDelivered  *prometheus.CounterVec
	FallbackActivations *prometheus.CounterVec
	Mutations           *prometheus.CounterVec
	ActiveSubscriptions *prometheus.GaugeVec
	RecomputeDuration   prometheus.Histogram
}

// New creates and registers all instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		SnapshotsDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ajira_snapshots_delivered_total",
			Help: "Snapshots delivered to subscribers, by collection and mode",
		}, []string{"collection", "mode"}),
		FallbackActivations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ajira_fallback_activations_total",
			Help: "Times a subscription entered degraded mode, by collection",
		}, []string{"collection"}),
		Mutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ajira_mutations_total",
			Help: "Mutations attempted, by collection, operation and outcome",
		}, []string{"collection", "op", "outcome"}),
		ActiveSubscriptions: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ajira_active_subscriptions",
			Help: "Currently open subscriber handles, by collection",
		}, []string{"collection"}),
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ajira_metrics_recompute_duration_seconds",
			Help:    "Latency of aggregate metrics recomputation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveRecompute records one recomputation duration.
func (m *Metrics) ObserveRecompute(d time.Duration) {
	if m == nil {
		return
	}
	m.RecomputeDuration.Observe(d.Seconds())
}
