// Package metric provides Prometheus instrumentation for the mapping
// engine, the remote object resolver, and the deferred resolver.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the core instrumentation for the federation layer.
type Metrics struct {
	registry *prometheus.Registry

	// ResolveTotal counts remote object resolutions by entity type and
	// outcome (hit, fetched, error).
	ResolveTotal *prometheus.CounterVec

	// FetchDuration observes remote fetch latency in seconds.
	FetchDuration prometheus.Histogram

	// MappingTotal counts mapping operations by entity type and result
	// (ok, error).
	MappingTotal *prometheus.CounterVec

	// DeferredDispatched counts deferred reverse-relation requests
	// enqueued.
	DeferredDispatched prometheus.Counter

	// DeferredHandled counts deferred requests completed by result
	// (ok, retry, fatal).
	DeferredHandled *prometheus.CounterVec
}

// New creates the metrics registered against a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ResolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedwire",
			Name:      "resolve_total",
			Help:      "Remote object resolutions by entity type and outcome.",
		}, []string{"type", "outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fedwire",
			Name:      "fetch_duration_seconds",
			Help:      "Remote representation fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		MappingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedwire",
			Name:      "mapping_total",
			Help:      "Mapping engine conversions by entity type and result.",
		}, []string{"type", "result"}),
		DeferredDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fedwire",
			Name:      "deferred_dispatched_total",
			Help:      "Deferred reverse-relation requests enqueued.",
		}),
		DeferredHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fedwire",
			Name:      "deferred_handled_total",
			Help:      "Deferred reverse-relation requests completed by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.ResolveTotal,
		m.FetchDuration,
		m.MappingTotal,
		m.DeferredDispatched,
		m.DeferredHandled,
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
