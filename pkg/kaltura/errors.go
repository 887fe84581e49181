package kaltura

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error taxonomy shared by every package of the client.
var (
	// ErrConfiguration reports an invalid construction parameter. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthenticationFailed reports that a session could not be negotiated.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTransient marks network, timeout and 5xx-class failures of a single call.
	ErrTransient = errors.New("transient remote error")

	// ErrRemoteRejected marks a call the service executed but answered with a structured failure.
	ErrRemoteRejected = errors.New("remote rejected request")

	// ErrOperationFailed is returned when retries of a transient failure are exhausted.
	ErrOperationFailed = errors.New("operation failed")

	// ErrUnsupportedAlgorithm is returned when a session hash type is not available.
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

	// ErrNotFound is returned by lookups that resolve to nothing.
	ErrNotFound = errors.New("not found")

	// ErrNoProgress is returned when re-anchoring a paginated export cannot advance the cursor.
	ErrNoProgress = errors.New("pagination made no progress")
)

// Remote error codes with special handling.
const (
	CodeInvalidKS       = "INVALID_KS"
	CodeExpiredKS       = "EXPIRED_KS"
	CodeEntryNotFound   = "ENTRY_ID_NOT_FOUND"
	CodeInvalidObjectID = "INVALID_OBJECT_ID"
)

// RemoteError is a structured failure returned by the service.
type RemoteError struct {
	Code    string
	Message string
	Args    map[string]string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("remote error: %s", e.Message)
	}
	return fmt.Sprintf("remote error %s: %s", e.Code, e.Message)
}

// Is makes errors.Is(err, ErrRemoteRejected) hold for every RemoteError.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteRejected
}

// IsSessionError reports whether the service rejected the session token itself.
func (e *RemoteError) IsSessionError() bool {
	return e.Code == CodeInvalidKS || e.Code == CodeExpiredKS
}

// TransportError wraps a network failure or a retryable HTTP status.
type TransportError struct {
	StatusCode int // 0 for network errors
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return fmt.Sprintf("transport error (status %d): %v", e.StatusCode, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransient) hold for every TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransient
}

// OperationError annotates the last failure of a call with the call identity
// and its parameters, for diagnosability.
type OperationError struct {
	Tag      string
	Params   map[string]any
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("request '%s' (%s) failed after %d attempts: %v",
		e.Tag, formatParams(e.Params), e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrOperationFailed) hold for every OperationError.
func (e *OperationError) Is(target error) bool {
	return target == ErrOperationFailed
}

// RejectedError annotates a RemoteError with the originating call.
type RejectedError struct {
	Tag    string
	Params map[string]any
	Err    *RemoteError
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("request '%s' (%s) was unsuccessful: %v", e.Tag, formatParams(e.Params), e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RejectedError) Unwrap() error {
	return e.Err
}

// WarningKind classifies an IntegrityWarning.
type WarningKind string

const (
	// WarningCountMismatch: fewer or more records resolved than identifiers requested.
	WarningCountMismatch WarningKind = "count_mismatch"

	// WarningDuplicateReference: a referenceId resolved to several entry ids.
	WarningDuplicateReference WarningKind = "duplicate_reference"
)

// IntegrityWarning describes an upstream data inconsistency. It never aborts
// an operation; results are returned best effort alongside the warnings.
type IntegrityWarning struct {
	Kind    WarningKind
	Subject string
	Detail  string
}

// String renders the warning for logs.
func (w IntegrityWarning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Subject, w.Detail)
}

var secretParams = map[string]bool{
	"secret":    true,
	"tokenHash": true,
	"ks":        true,
}

// formatParams renders call parameters deterministically with secrets redacted.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return "no params"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if secretParams[k] {
			parts = append(parts, k+"=***")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ", ")
}
