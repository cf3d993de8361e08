// Package metrics holds the Prometheus collectors the sync engine
// exposes at /metrics: adapter call volume/latency, job queue depth,
// and per-change sync outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the sync engine updates.
type Metrics struct {
	AdapterCallsTotal   *prometheus.CounterVec
	AdapterCallDuration *prometheus.HistogramVec
	QueueDepth          prometheus.Gauge
	JobsTotal           *prometheus.CounterVec
	JobDuration         prometheus.Histogram
	ChangesAppliedTotal *prometheus.CounterVec
	CircuitBreakerOpen  *prometheus.GaugeVec
}

// New registers and returns the sync engine's collector set against
// the default Prometheus registry.
func New() *Metrics {
	return &Metrics{
		AdapterCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "selecta_sync_adapter_calls_total",
			Help: "The total number of remote platform adapter calls, by platform and outcome.",
		}, []string{"platform", "outcome"}),
		AdapterCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "selecta_sync_adapter_call_duration_seconds",
			Help:    "The duration of remote platform adapter calls, by platform.",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "selecta_sync_queue_depth",
			Help: "The current number of sync jobs queued but not yet running.",
		}),
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "selecta_sync_jobs_total",
			Help: "The total number of sync jobs run, by terminal outcome.",
		}, []string{"outcome"}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "selecta_sync_job_duration_seconds",
			Help:    "The duration of a full sync job, from plan apply start to finish.",
			Buckets: prometheus.DefBuckets,
		}),
		ChangesAppliedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "selecta_sync_changes_total",
			Help: "The total number of SyncChanges applied, by kind, direction, and outcome.",
		}, []string{"kind", "direction", "outcome"}),
		CircuitBreakerOpen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "selecta_sync_circuit_breaker_open",
			Help: "1 if the platform's circuit breaker is currently open, else 0.",
		}, []string{"platform"}),
	}
}
