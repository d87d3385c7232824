package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_cache_operations_total",
		Help: "Total number of cache maintenance operations",
	}, []string{"operation", "status"})

	CacheLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storage_cache_latency_seconds",
		Help:    "Latency of cache maintenance runs",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storage_cache_size_entries",
		Help: "Number of spectra in the cache after the last maintenance run",
	})

	// Consistency metrics
	ConsistencyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_consistency_errors_total",
		Help: "Total number of consistency errors detected",
	}, []string{"type"})

	ConsistencyCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storage_consistency_check_latency_seconds",
		Help:    "Latency of consistency checks",
		Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30},
	})

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_errors_total",
		Help: "Total number of storage errors",
	}, []string{"store", "operation", "error_type"})
)
