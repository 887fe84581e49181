package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// negotiationsTotal tracks session negotiations by strategy and result
	negotiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaltura_session_negotiations_total",
			Help: "Total number of session negotiations",
		},
		[]string{"strategy", "result"}, // result: "success", "failure", "shared"
	)

	// sessionAge tracks the age of the credential handed out last
	sessionAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kaltura_session_age_seconds",
			Help: "Age of the current session credential in seconds",
		},
	)

	// invalidationsTotal tracks sessions dropped after the service rejected them
	invalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kaltura_session_invalidations_total",
			Help: "Total number of sessions invalidated after rejection by the service",
		},
	)
)
