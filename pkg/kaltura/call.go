// Package kaltura describes the remote media-management service the client
// talks to: the call envelope, the HTTP transport, the wire types and the
// error taxonomy shared by the session, client and pagination layers.
package kaltura

import (
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/goccy/go-json"
)

// Call identifies one remote action with its parameters.
type Call struct {
	Service string
	Action  string
	Params  map[string]any

	// KS is the session token. Set by the executor, empty for anonymous calls.
	KS string
}

// NewCall creates a call for service.action.
func NewCall(service, action string, params map[string]any) Call {
	if params == nil {
		params = map[string]any{}
	}
	return Call{Service: service, Action: action, Params: params}
}

// Tag returns the call identity used in logs, metrics and errors.
func (c Call) Tag() string {
	return c.Service + "." + c.Action
}

// WithKS returns a copy of the call bound to the given session token.
func (c Call) WithKS(ks string) Call {
	c.Params = maps.Clone(c.Params)
	c.KS = ks
	return c
}

// FilePart is the file attached to an upload call.
type FilePart struct {
	Field  string
	Name   string
	Reader io.Reader
}

// Transport executes a single call against the service. Implementations
// return *RemoteError for structured failures and *TransportError for
// network or retryable HTTP failures.
type Transport interface {
	Do(ctx context.Context, call Call) (json.RawMessage, error)
	Upload(ctx context.Context, call Call, file FilePart) (json.RawMessage, error)
}

// Decode unmarshals a call result into T.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, fmt.Errorf("decode result: empty response")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}
