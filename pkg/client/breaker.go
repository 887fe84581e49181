package client

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker around remote calls.
type BreakerConfig struct {
	// Disabled turns the breaker off.
	Disabled bool

	// MaxRequests is the number of probe calls allowed while half-open.
	MaxRequests uint32

	// Interval resets the failure counts while closed.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// MinRequests is the sample size needed before the breaker may trip.
	MinRequests uint32

	// FailureRatio trips the breaker once reached.
	FailureRatio float64
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// newBreaker creates the breaker. Only transient failures count against it:
// a rejected call proves the service is up.
func newBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[json.RawMessage] {
	if cfg.Disabled {
		return nil
	}

	breakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= cfg.FailureRatio {
				logger.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening circuit breaker")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
			breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},

		IsSuccessful: func(err error) bool {
			return classify(err) != ErrorClassTransient
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
