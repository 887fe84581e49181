package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaltura_requests_total",
		Help: "Total remote calls by action and result",
	}, []string{"action", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kaltura_request_duration_seconds",
		Help:    "Remote call duration in seconds by action",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"action"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaltura_errors_total",
		Help: "Total remote call errors by class",
	}, []string{"class"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kaltura_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaltura_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"name", "from", "to"})

	integrityWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaltura_integrity_warnings_total",
		Help: "Upstream data inconsistencies detected by kind",
	}, []string{"kind"})
)
