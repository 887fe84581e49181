// Package ratelimit paces outgoing calls so bulk exports and id resolution
// stay under the partner's request quota on the remote service.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	kalturaRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaltura_rate_limit_waits_total",
		Help: "Total number of calls delayed by the client-side rate limiter",
	})

	kalturaRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kaltura_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limiter token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Config holds the limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained call rate. Zero or less disables pacing.
	RequestsPerSecond float64

	// Burst is the number of calls allowed back to back.
	Burst int
}

// DefaultConfig returns a conservative pacing configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// Limiter gates calls with a token bucket.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter. A non-positive rate yields an unlimited limiter.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Unlimited reports whether the limiter never delays calls.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

// Wait blocks until a call may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.Unlimited() {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	waited := time.Since(start)
	if waited > time.Millisecond {
		kalturaRateLimitWaitsTotal.Inc()
		kalturaRateLimitWaitSeconds.Observe(waited.Seconds())
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Call delayed by rate limiter")
	}
	return nil
}
