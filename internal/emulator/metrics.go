package emulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PredictionsTotal tracks predictions by outcome
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emulator_predictions_total",
			Help: "The total number of power spectrum predictions",
		},
		[]string{"status"},
	)

	// PredictionDuration tracks end-to-end prediction latency
	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emulator_prediction_duration_seconds",
			Help:    "The duration of a power spectrum prediction in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // From 10µs to ~2.6s
		},
	)

	// ComponentDuration tracks time spent evaluating the regressor ensemble
	ComponentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emulator_component_duration_seconds",
			Help:    "The duration of the principal component regression stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	// ErrorsTotal tracks failed predictions by error type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emulator_errors_total",
			Help: "The total number of failed predictions by error type",
		},
		[]string{"error_type"},
	)

	// OutOfBoundsTotal tracks parameters observed outside their bounds
	OutOfBoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emulator_out_of_bounds_total",
			Help: "The total number of parameters received outside the emulator bounds",
		},
		[]string{"parameter"},
	)

	// CacheHits tracks spectra served from the cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emulator_cache_hits_total",
			Help: "The total number of predictions served from the cache",
		},
	)

	// CacheMisses tracks cache lookups that required a prediction
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "emulator_cache_misses_total",
			Help: "The total number of cache lookups that missed",
		},
	)
)
