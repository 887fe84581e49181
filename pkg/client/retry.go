package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaltura_retries_total",
		Help: "Total number of retry attempts by action",
	}, []string{"action"})

	retryDelaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kaltura_retry_delay_seconds",
		Help:    "Delay before retries by action",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"action"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaltura_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by action",
	}, []string{"action"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// Delay is the wait before the first retry.
	Delay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// BackoffMultiplier grows the delay after each retry. 1 keeps it fixed.
	BackoffMultiplier float64

	// Jitter randomizes each delay by ±20%.
	Jitter bool
}

// DefaultRetryConfig returns the default retry configuration: three
// attempts one second apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		Delay:             1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 1.0,
	}
}

// normalized fills unset fields with usable values.
func (c RetryConfig) normalized() RetryConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = 1
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// retryWithBackoff executes fn until it succeeds, fails with a
// non-retryable error or the attempts are exhausted. It returns the number of
// attempts made and the last error. Waits respect context cancellation.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, action string, fn func(attempt int) error) (int, error) {
	config = config.normalized()

	var lastErr error
	delay := config.Delay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("action", action).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		lastErr = err
		errorClass := classify(err)

		// Check if we should retry this error
		if !shouldRetry(errorClass) {
			return attempt, lastErr
		}

		// If this was the last attempt, don't wait
		if attempt >= config.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(action).Inc()

		wait := delay
		if config.Jitter {
			wait = time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
		}
		retryDelaySeconds.WithLabelValues(action).Observe(wait.Seconds())

		logger.Warn().
			Err(err).
			Str("action", action).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("delay", wait).
			Msg("Retrying request after delay")

		// Wait with context cancellation support
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("action", action).
				Int("attempt", attempt).
				Msg("Context cancelled during retry delay")
			return attempt, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.BackoffMultiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	retryExhaustedTotal.WithLabelValues(action).Inc()
	logger.Error().
		Err(lastErr).
		Str("action", action).
		Int("max_attempts", config.MaxAttempts).
		Msg("Retry attempts exhausted")

	return config.MaxAttempts, lastErr
}
