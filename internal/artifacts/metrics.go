package artifacts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoadDuration tracks the duration of loading the full artifact set
	LoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artifact_load_duration_seconds",
			Help:    "The duration of artifact loading in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // From 1ms to ~8s
		},
	)

	// LoadErrors tracks artifact load failures
	LoadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_load_errors_total",
			Help: "The total number of artifact load failures",
		},
		[]string{"artifact"},
	)

	// ModelComponents exposes the shape of the loaded model
	ModelComponents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artifact_model_dimensions",
			Help: "Dimensions of the loaded emulator model",
		},
		[]string{"dimension"},
	)
)
