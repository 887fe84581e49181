package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Common errors returned by the client.
var (
	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of call failures.
type ErrorClass string

const (
	// ErrorClassNone is the class of a nil error.
	ErrorClassNone ErrorClass = ""

	// ErrorClassTransient represents network, timeout and 5xx failures.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassSession represents a rejected session token.
	ErrorClassSession ErrorClass = "session"

	// ErrorClassRejected represents structured failures returned by the service.
	ErrorClassRejected ErrorClass = "rejected"

	// ErrorClassCircuitOpen represents calls refused by the circuit breaker.
	ErrorClassCircuitOpen ErrorClass = "circuit_open"

	// ErrorClassCancelled represents context cancellation or deadline.
	ErrorClassCancelled ErrorClass = "cancelled"

	// ErrorClassOther represents everything else (decoding, configuration).
	ErrorClassOther ErrorClass = "other"
)

// classify determines the ErrorClass of a call failure.
func classify(err error) ErrorClass {
	var remoteErr *kaltura.RemoteError
	switch {
	case err == nil:
		return ErrorClassNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrContextCancelled):
		return ErrorClassCancelled
	case errors.Is(err, ErrCircuitOpen):
		return ErrorClassCircuitOpen
	case errors.As(err, &remoteErr) && remoteErr.IsSessionError():
		return ErrorClassSession
	case errors.Is(err, kaltura.ErrRemoteRejected):
		return ErrorClassRejected
	case errors.Is(err, kaltura.ErrTransient):
		return ErrorClassTransient
	default:
		return ErrorClassOther
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassTransient:
		// Network and 5xx failures are retried in place
		return true
	case ErrorClassRejected, ErrorClassSession:
		// The service executed the call; repeating it gives the same answer
		return false
	case ErrorClassCircuitOpen:
		// Retrying inside the open window only burns attempts
		return false
	default:
		return false
	}
}

// breakerError maps gobreaker rejections onto ErrCircuitOpen.
func breakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w (%s): %v", ErrCircuitOpen, name, err)
	}
	return err
}

// annotate attaches the originating call to a terminal failure.
func annotate(call kaltura.Call, attempts int, err error) error {
	if err == nil {
		return nil
	}

	var remoteErr *kaltura.RemoteError
	switch classify(err) {
	case ErrorClassRejected, ErrorClassSession:
		if errors.As(err, &remoteErr) {
			return &kaltura.RejectedError{Tag: call.Tag(), Params: call.Params, Err: remoteErr}
		}
		return err
	case ErrorClassTransient, ErrorClassCircuitOpen:
		return &kaltura.OperationError{Tag: call.Tag(), Params: call.Params, Attempts: attempts, Err: err}
	default:
		return fmt.Errorf("request '%s': %w", call.Tag(), err)
	}
}
