package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CircuitBreakerState reports the remote tier breaker (0=closed, 1=open)
	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storage_circuit_breaker_state",
		Help: "Current state of the remote cache circuit breaker (0=closed, 1=open)",
	})

	// CircuitBreakerTrips counts how often the breaker opened
	CircuitBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storage_circuit_breaker_trips_total",
		Help: "Total number of remote cache circuit breaker trips",
	})
)
