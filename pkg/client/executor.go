package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/session"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Executor runs single remote calls: session binding, retries, the circuit
// breaker and error translation.
type Executor struct {
	transport kaltura.Transport
	sessions  *session.Manager
	retry     RetryConfig
	breaker   *gobreaker.CircuitBreaker[json.RawMessage]
	logger    zerolog.Logger
}

// NewExecutor creates an executor. Sessions may be bound later with
// BindSessions, since negotiation itself runs through the executor.
func NewExecutor(transport kaltura.Transport, retry RetryConfig, breaker BreakerConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		transport: transport,
		retry:     retry,
		breaker:   newBreaker("kaltura-api", breaker, logger),
		logger:    logger,
	}
}

// BindSessions attaches the session manager used by refreshed calls.
func (e *Executor) BindSessions(m *session.Manager) {
	e.sessions = m
}

// Caller returns the unauthenticated call path used by session negotiation.
func (e *Executor) Caller() session.Caller {
	return session.CallerFunc(func(ctx context.Context, call kaltura.Call) (json.RawMessage, error) {
		return e.Do(ctx, call, false)
	})
}

// Do executes call. With refresh, a live session is obtained first and bound
// to the call; a session the service rejects is renegotiated once.
func (e *Executor) Do(ctx context.Context, call kaltura.Call, refresh bool) (json.RawMessage, error) {
	return e.execute(ctx, call, refresh, 0, func(ctx context.Context, c kaltura.Call) (json.RawMessage, error) {
		return e.transport.Do(ctx, c)
	})
}

// Upload executes a multipart call. The file is re-read on retries only when
// its reader can seek; otherwise the call gets a single attempt.
func (e *Executor) Upload(ctx context.Context, call kaltura.Call, file kaltura.FilePart, refresh bool) (json.RawMessage, error) {
	seeker, canSeek := file.Reader.(io.Seeker)
	maxAttempts := 0
	if !canSeek {
		maxAttempts = 1
	}

	first := true
	return e.execute(ctx, call, refresh, maxAttempts, func(ctx context.Context, c kaltura.Call) (json.RawMessage, error) {
		if !first && canSeek {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind %s: %w", file.Name, err)
			}
		}
		first = false
		return e.transport.Upload(ctx, c, file)
	})
}

type sendFunc func(ctx context.Context, call kaltura.Call) (json.RawMessage, error)

func (e *Executor) execute(ctx context.Context, call kaltura.Call, refresh bool, maxAttempts int, send sendFunc) (json.RawMessage, error) {
	renegotiated := false

	for {
		bound := call
		if refresh {
			if e.sessions == nil {
				return nil, fmt.Errorf("%w: no session manager bound", kaltura.ErrConfiguration)
			}
			cred, err := e.sessions.LiveSession(ctx)
			if err != nil {
				return nil, err
			}
			bound = call.WithKS(cred.Token)
		}

		result, attempts, err := e.attempt(ctx, bound, maxAttempts, send)
		if err == nil {
			return result, nil
		}

		if refresh && !renegotiated && classify(err) == ErrorClassSession {
			e.logger.Warn().
				Err(err).
				Str("action", call.Tag()).
				Msg("Session rejected, renegotiating once")
			e.sessions.Invalidate(ctx, bound.KS)
			renegotiated = true
			continue
		}

		return nil, annotate(call, attempts, err)
	}
}

func (e *Executor) attempt(ctx context.Context, call kaltura.Call, maxAttempts int, send sendFunc) (json.RawMessage, int, error) {
	action := call.Tag()
	config := e.retry
	if maxAttempts > 0 {
		config.MaxAttempts = maxAttempts
	}

	var result json.RawMessage
	attempts, err := retryWithBackoff(ctx, config, e.logger, action, func(attempt int) error {
		start := time.Now()
		raw, err := e.send(ctx, call, send)
		requestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

		if err != nil {
			class := classify(err)
			requestsTotal.WithLabelValues(action, string(class)).Inc()
			errorsTotal.WithLabelValues(string(class)).Inc()
			e.logger.Debug().
				Err(err).
				Str("action", action).
				Int("attempt", attempt).
				Str("error_class", string(class)).
				Msg("Remote call failed")
			return err
		}

		requestsTotal.WithLabelValues(action, "success").Inc()
		result = raw
		return nil
	})
	return result, attempts, err
}

func (e *Executor) send(ctx context.Context, call kaltura.Call, send sendFunc) (json.RawMessage, error) {
	if e.breaker == nil {
		return send(ctx, call)
	}
	raw, err := e.breaker.Execute(func() (json.RawMessage, error) {
		return send(ctx, call)
	})
	return raw, breakerError(e.breaker.Name(), err)
}
