package regression

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ComponentDuration tracks the evaluation time of each ensemble member
	ComponentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "regression_component_duration_seconds",
			Help:    "The duration of a single regressor evaluation in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12), // From 1µs to ~4s
		},
		[]string{"component"},
	)

	// ComponentErrors tracks failed regressor evaluations
	ComponentErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regression_component_errors_total",
			Help: "The total number of failed regressor evaluations",
		},
		[]string{"component"},
	)
)
