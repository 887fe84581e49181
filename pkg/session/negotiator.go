package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Strategy names.
const (
	StrategyAppToken    = "app_token"
	StrategyAdminSecret = "admin_secret"
)

// Caller executes a call without session renewal. Negotiation runs on this
// path so that it never recurses into the session manager.
type Caller interface {
	Call(ctx context.Context, call kaltura.Call) (json.RawMessage, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, call kaltura.Call) (json.RawMessage, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, call kaltura.Call) (json.RawMessage, error) {
	return f(ctx, call)
}

// Negotiator obtains a fresh privileged credential.
type Negotiator interface {
	Negotiate(ctx context.Context, timing Timing) (Credential, error)
	Strategy() string
}

// Credentials identifies the account a session is negotiated for. Exactly one
// of Secret or the AppTokenID/AppToken pair must be set.
type Credentials struct {
	PartnerID int
	UserID    string

	// Secret is the partner admin secret.
	Secret string

	AppTokenID string
	AppToken   string
	HashType   HashType
}

// NewNegotiator selects the admin-secret strategy when a secret is
// configured and the app-token strategy otherwise.
func NewNegotiator(creds Credentials, caller Caller, logger zerolog.Logger) (Negotiator, error) {
	if creds.PartnerID <= 0 {
		return nil, fmt.Errorf("%w: partner id must be positive", kaltura.ErrConfiguration)
	}
	if caller == nil {
		return nil, fmt.Errorf("%w: caller is required", kaltura.ErrConfiguration)
	}

	switch {
	case creds.Secret != "":
		return &AdminSecretNegotiator{
			partnerID: creds.PartnerID,
			userID:    creds.UserID,
			secret:    creds.Secret,
			caller:    caller,
			logger:    logger,
		}, nil

	case creds.AppTokenID != "" && creds.AppToken != "":
		hashType := creds.HashType
		if hashType == "" {
			hashType = DefaultHashType
		}
		// Fail at construction rather than at the first renewal.
		if _, err := hashType.new(); err != nil {
			return nil, err
		}
		return &AppTokenNegotiator{
			partnerID: creds.PartnerID,
			userID:    creds.UserID,
			tokenID:   creds.AppTokenID,
			token:     creds.AppToken,
			hashType:  hashType,
			caller:    caller,
			logger:    logger,
		}, nil

	default:
		return nil, fmt.Errorf("%w: either an admin secret or an app token id and token are required",
			kaltura.ErrConfiguration)
	}
}

// AppTokenNegotiator escalates an unprivileged widget session with an app
// token hash.
type AppTokenNegotiator struct {
	partnerID int
	userID    string
	tokenID   string
	token     string
	hashType  HashType
	caller    Caller
	logger    zerolog.Logger
}

// Strategy implements Negotiator.
func (n *AppTokenNegotiator) Strategy() string { return StrategyAppToken }

// Negotiate implements Negotiator.
func (n *AppTokenNegotiator) Negotiate(ctx context.Context, timing Timing) (Credential, error) {
	expiry := int(timing.Duration / time.Second)

	widgetCall := kaltura.NewCall("session", "startWidgetSession", map[string]any{
		"widgetId": "_" + strconv.Itoa(n.partnerID),
		"expiry":   expiry,
	})
	raw, err := n.caller.Call(ctx, widgetCall)
	if err != nil {
		return Credential{}, authFailed(widgetCall, err)
	}
	widget, err := kaltura.Decode[kaltura.StartWidgetSessionResponse](raw)
	if err != nil {
		return Credential{}, authFailed(widgetCall, err)
	}
	if widget.KS == "" {
		return Credential{}, authFailed(widgetCall, fmt.Errorf("empty widget session"))
	}

	tokenHash, err := ComputeHash(n.hashType, n.token, widget.KS)
	if err != nil {
		return Credential{}, err
	}

	params := map[string]any{
		"id":        n.tokenID,
		"tokenHash": tokenHash,
		"type":      kaltura.SessionTypeAdmin,
		"expiry":    expiry,
	}
	if n.userID != "" {
		params["userId"] = n.userID
	}
	startCall := kaltura.NewCall("appToken", "startSession", params).WithKS(widget.KS)
	raw, err = n.caller.Call(ctx, startCall)
	if err != nil {
		return Credential{}, authFailed(startCall, err)
	}
	info, err := kaltura.Decode[kaltura.SessionInfo](raw)
	if err != nil {
		return Credential{}, authFailed(startCall, err)
	}
	if info.KS == "" {
		return Credential{}, authFailed(startCall, fmt.Errorf("empty session token"))
	}

	n.logger.Debug().
		Int("partner_id", n.partnerID).
		Str("app_token_id", n.tokenID).
		Msg("App token session started")

	return Credential{Token: info.KS, IssuedAt: time.Now(), Timing: timing}, nil
}

// AdminSecretNegotiator generates a session directly from the partner admin
// secret. Intended for bootstrapping app tokens only.
type AdminSecretNegotiator struct {
	partnerID int
	userID    string
	secret    string
	caller    Caller
	logger    zerolog.Logger
}

// Strategy implements Negotiator.
func (n *AdminSecretNegotiator) Strategy() string { return StrategyAdminSecret }

// Negotiate implements Negotiator.
func (n *AdminSecretNegotiator) Negotiate(ctx context.Context, timing Timing) (Credential, error) {
	n.logger.Warn().
		Int("partner_id", n.partnerID).
		Msg("Using admin secret to start a session; configure an app token instead")

	call := kaltura.NewCall("session", "start", map[string]any{
		"secret":    n.secret,
		"userId":    n.userID,
		"type":      kaltura.SessionTypeAdmin,
		"partnerId": n.partnerID,
		"expiry":    int(timing.Duration / time.Second),
	})
	raw, err := n.caller.Call(ctx, call)
	if err != nil {
		return Credential{}, authFailed(call, err)
	}
	ks, err := kaltura.Decode[string](raw)
	if err != nil {
		return Credential{}, authFailed(call, err)
	}
	if ks == "" {
		return Credential{}, authFailed(call, fmt.Errorf("empty session token"))
	}

	return Credential{Token: ks, IssuedAt: time.Now(), Timing: timing}, nil
}

func authFailed(call kaltura.Call, err error) error {
	return fmt.Errorf("%w: %s: %w", kaltura.ErrAuthenticationFailed, call.Tag(), err)
}
