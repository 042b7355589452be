package store

import "github.com/prometheus/client_golang/prometheus"

// Package-level collectors, registered once. Labels carry only action and
// collection names, never argument values.
var (
	operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_operations_total",
		Help: "Store operations by action and outcome.",
	}, []string{"action", "outcome"})

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lattice_cache_hits_total",
		Help: "Read operations served from the cache.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lattice_cache_misses_total",
		Help: "Read operations that filled the cache.",
	})

	reconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lattice_reconnects_total",
		Help: "Reconnection sequences started.",
	})

	reconnectFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lattice_reconnect_failures_total",
		Help: "Reconnection sequences that exhausted their attempts.",
	})

	failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lattice_failures_total",
		Help: "Terminal operation failures by classification.",
	}, []string{"class"})
)

func init() {
	prometheus.MustRegister(
		operationsTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		reconnectsTotal,
		reconnectFailuresTotal,
		failuresTotal,
	)
}

// className labels a Class for metrics.
func className(c Class) string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassPermanent:
		return "permanent"
	case ClassDuplicateKey:
		return "duplicate_key"
	default:
		return "unknown"
	}
}
