// Package metrics exposes Prometheus counters for the auth subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	authOperations *prometheus.CounterVec
	authRejections *prometheus.CounterVec
	hashDuration   prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		authOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentorlink",
			Subsystem: "auth",
			Name:      "operations_total",
			Help:      "Account operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mentorlink",
			Subsystem: "auth",
			Name:      "rejections_total",
			Help:      "Requests rejected by the session middleware or role gate, by reason.",
		}, []string{"reason"}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mentorlink",
			Subsystem: "auth",
			Name:      "password_hash_seconds",
			Help:      "Time spent hashing or verifying passwords.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authOperations,
		m.authRejections,
		m.hashDuration,
	)
	return m
}

// ObserveOperation counts one account operation.
func (m *Metrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.authOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRejection counts one rejected request.
func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.authRejections.WithLabelValues(reason).Inc()
}

// ObserveHash records the duration of one hash or verify call, in seconds.
func (m *Metrics) ObserveHash(seconds float64) {
	if m == nil {
		return
	}
	m.hashDuration.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
