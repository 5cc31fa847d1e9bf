// Package metrics holds the Prometheus collectors of the vault process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHits counts read cache lookups that returned verified bytes.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docvault",
		Name:      "cache_hits_total",
		Help:      "Read cache hits.",
	})

	// CacheMisses counts lookups that fell through to disk.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docvault",
		Name:      "cache_misses_total",
		Help:      "Read cache misses, including checksum mismatches.",
	})

	// CacheEvictions counts entries dropped to stay within the byte budget.
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docvault",
		Name:      "cache_evictions_total",
		Help:      "Read cache entries evicted by the byte budget.",
	})

	// CacheBytes is the current size of cached data.
	CacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "docvault",
		Name:      "cache_bytes",
		Help:      "Bytes currently held by the read cache.",
	})

	// LockWait observes how long callers waited for a lock, by scope.
	LockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docvault",
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting for container and item locks.",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	}, []string{"scope"})

	// Writes counts write protocol runs by operation and outcome.
	Writes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docvault",
		Name:      "writes_total",
		Help:      "Write operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// Compensations counts rollback actions on the filesystem by outcome.
	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docvault",
		Name:      "compensations_total",
		Help:      "Filesystem compensations run after failed writes.",
	}, []string{"action", "outcome"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
