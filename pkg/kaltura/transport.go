package kaltura

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/ratelimit"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxResponseSize bounds the body read from a single response.
const maxResponseSize = 64 << 20

const apiPath = "/api_v3"

// HTTPTransportConfig holds the transport configuration.
type HTTPTransportConfig struct {
	// Endpoint is the service base URL, e.g. "https://kmc.example.org".
	Endpoint string

	// ClientTag identifies this client in the service logs.
	ClientTag string

	// Timeout bounds one HTTP round trip.
	Timeout time.Duration

	// Limiter paces calls. Nil disables pacing.
	Limiter *ratelimit.Limiter
}

// HTTPTransport speaks the JSON flavour of the service API over HTTP.
type HTTPTransport struct {
	baseURL    string
	clientTag  string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

// NewHTTPTransport creates a transport for the configured endpoint.
func NewHTTPTransport(cfg HTTPTransportConfig, logger zerolog.Logger) (*HTTPTransport, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConfiguration)
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, fmt.Errorf("%w: endpoint must be an http(s) URL (got %q)", ErrConfiguration, cfg.Endpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientTag := cfg.ClientTag
	if clientTag == "" {
		clientTag = "kaltura-client-go"
	}

	base := strings.TrimRight(cfg.Endpoint, "/")
	if !strings.HasSuffix(base, apiPath) {
		base += apiPath
	}

	return &HTTPTransport{
		baseURL:    base,
		clientTag:  clientTag,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    cfg.Limiter,
		logger:     logger,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// Do executes a JSON call.
func (t *HTTPTransport) Do(ctx context.Context, call Call) (json.RawMessage, error) {
	body := make(map[string]any, len(call.Params)+3)
	for k, v := range call.Params {
		body[k] = v
	}
	body["format"] = 1
	body["clientTag"] = t.clientTag
	if call.KS != "" {
		body["ks"] = call.KS
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", call.Tag(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.actionURL(call), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return t.roundTrip(ctx, call, req)
}

// Upload executes a multipart call carrying a file.
func (t *HTTPTransport) Upload(ctx context.Context, call Call, file FilePart) (json.RawMessage, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := flattenParams(call.Params)
	fields["format"] = "1"
	fields["clientTag"] = t.clientTag
	if call.KS != "" {
		fields["ks"] = call.KS
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	field := file.Field
	if field == "" {
		field = "fileData"
	}
	part, err := mw.CreateFormFile(field, file.Name)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return nil, fmt.Errorf("copy file %s: %w", file.Name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.actionURL(call), &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return t.roundTrip(ctx, call, req)
}

func (t *HTTPTransport) actionURL(call Call) string {
	return fmt.Sprintf("%s/service/%s/action/%s", t.baseURL, call.Service, call.Action)
}

func (t *HTTPTransport) roundTrip(ctx context.Context, call Call, req *http.Request) (json.RawMessage, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	t.logger.Debug().
		Str("action", call.Tag()).
		Str("request_id", requestID).
		Msg("Executing remote call")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if retryableStatus(resp.StatusCode) {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: strings.TrimSpace(string(truncate(data, 512))),
		}
	}

	if remoteErr := parseException(data); remoteErr != nil {
		return nil, remoteErr
	}
	return json.RawMessage(data), nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

type exceptionEnvelope struct {
	ObjectType string          `json:"objectType"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Args       json.RawMessage `json:"args"`
}

// parseException returns a RemoteError when the body is an API exception.
func parseException(data []byte) *RemoteError {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var env exceptionEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil
	}
	if env.ObjectType != "KalturaAPIException" {
		return nil
	}

	remoteErr := &RemoteError{Code: env.Code, Message: env.Message}
	if len(env.Args) > 0 && env.Args[0] == '{' {
		var args map[string]any
		if err := json.Unmarshal(env.Args, &args); err == nil && len(args) > 0 {
			remoteErr.Args = make(map[string]string, len(args))
			for k, v := range args {
				remoteErr.Args[k] = fmt.Sprint(v)
			}
		}
	}
	return remoteErr
}

// flattenParams renders nested parameters in the service's multipart
// notation ("resource:objectType").
func flattenParams(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch val := v.(type) {
		case nil:
		case map[string]any:
			for k, inner := range val {
				walk(prefix+":"+k, inner)
			}
		case Filter:
			for k, inner := range val {
				walk(prefix+":"+k, inner)
			}
		case bool:
			if val {
				out[prefix] = "1"
			} else {
				out[prefix] = "0"
			}
		default:
			out[prefix] = fmt.Sprint(val)
		}
	}
	for k, v := range params {
		walk(k, v)
	}
	return out
}

func truncate(data []byte, n int) []byte {
	if len(data) <= n {
		return data
	}
	return data[:n]
}
