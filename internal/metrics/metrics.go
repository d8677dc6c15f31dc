// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "premium_check"

// Metrics is a private registry plus the collectors registered on it.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	lookupAttempts *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	verdicts       *prometheus.CounterVec
	batchSize      prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		lookupAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_attempts_total",
			Help:      "Profile lookup attempts against the identity service, by outcome",
		}, []string{"outcome"}),

		lookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Latency of a single profile lookup attempt",
			Buckets:   prometheus.DefBuckets,
		}),

		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Per-claim verdicts, by reason (premium for verified claims)",
		}, []string{"reason"}),

		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of claims per verification batch",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
	}

	m.registry.MustRegister(
		m.lookupAttempts,
		m.lookupDuration,
		m.verdicts,
		m.batchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveLookup records one lookup attempt.
func (m *Metrics) ObserveLookup(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.lookupAttempts.WithLabelValues(outcome).Inc()
	m.lookupDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveVerdict(reason string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
