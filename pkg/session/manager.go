package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/logging"
	"github.com/rs/zerolog"
)

// CredentialStore shares credentials between processes. Store failures are
// logged and never fail a session request.
type CredentialStore interface {
	Load(ctx context.Context, key string) (Credential, bool, error)
	Save(ctx context.Context, key string, cred Credential) error
	Delete(ctx context.Context, key string) error
}

// ManagerConfig holds session manager configuration.
type ManagerConfig struct {
	Negotiator Negotiator
	Timing     Timing

	// Store is optional.
	Store CredentialStore

	// StoreKey identifies this account in Store. Required when Store is set.
	StoreKey string

	Logger zerolog.Logger
}

// Manager owns the single shared credential of a client.
type Manager struct {
	mu   sync.Mutex
	cred Credential

	negotiator Negotiator
	timing     Timing
	store      CredentialStore
	storeKey   string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewManager validates the configuration and creates a manager. No session
// is negotiated until the first LiveSession call.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Negotiator == nil {
		return nil, fmt.Errorf("%w: negotiator is required", kaltura.ErrConfiguration)
	}
	if err := cfg.Timing.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store != nil && cfg.StoreKey == "" {
		return nil, fmt.Errorf("%w: store key is required with a credential store", kaltura.ErrConfiguration)
	}

	return &Manager{
		negotiator: cfg.Negotiator,
		timing:     cfg.Timing,
		store:      cfg.Store,
		storeKey:   cfg.StoreKey,
		now:        time.Now,
		logger:     cfg.Logger,
	}, nil
}

// StoreKey builds the credential store key for an account.
func StoreKey(strategy string, partnerID int, userID string) string {
	return strategy + ":" + strconv.Itoa(partnerID) + ":" + userID
}

// LiveSession returns a credential that is not due for renewal, negotiating
// a new one if necessary. Concurrent callers wait for a single negotiation.
// Only the negotiation and the shared store lookup that can replace it run
// under the lock; publishing a new credential to the store happens after.
func (m *Manager) LiveSession(ctx context.Context) (Credential, error) {
	cred, negotiated, err := m.liveSession(ctx)
	if err != nil {
		return Credential{}, err
	}
	if negotiated {
		m.saveShared(ctx, cred)
	}
	return cred, nil
}

func (m *Manager) liveSession(ctx context.Context) (Credential, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.cred.NeedsRefresh(now) {
		sessionAge.Set(m.cred.Age(now).Seconds())
		return m.cred, false, nil
	}

	if cred, ok := m.loadShared(ctx, now); ok {
		m.cred = cred
		sessionAge.Set(cred.Age(now).Seconds())
		return cred, false, nil
	}

	strategy := m.negotiator.Strategy()
	cred, err := m.negotiator.Negotiate(ctx, m.timing)
	if err != nil {
		negotiationsTotal.WithLabelValues(strategy, "failure").Inc()
		m.logger.Error().
			Err(err).
			Str("strategy", strategy).
			Msg("Session negotiation failed")
		return Credential{}, false, err
	}
	cred.IssuedAt = now
	cred.Timing = m.timing

	m.cred = cred
	negotiationsTotal.WithLabelValues(strategy, "success").Inc()
	sessionAge.Set(0)

	m.logger.Info().
		Str("strategy", strategy).
		Str("ks", logging.MaskToken(cred.Token)).
		Time("expires_at", cred.ExpiresAt()).
		Dur("renew_after", m.timing.KeepAlive()).
		Msg("Session renewed")
	return cred, true, nil
}

// Invalidate drops the credential if it still carries token, forcing the next
// LiveSession call to renegotiate. A credential renewed in the meantime by
// another caller is kept. The shared store is cleaned up after the lock is
// released.
func (m *Manager) Invalidate(ctx context.Context, token string) {
	m.mu.Lock()
	if m.cred.IsZero() || m.cred.Token != token {
		m.mu.Unlock()
		return
	}
	m.cred = Credential{}
	m.mu.Unlock()

	invalidationsTotal.Inc()
	m.logger.Warn().Str("ks", logging.MaskToken(token)).Msg("Session rejected by service, invalidated")

	if m.store == nil {
		return
	}
	// Another process may already have stored a fresh session.
	if shared, ok, err := m.store.Load(ctx, m.storeKey); err == nil && ok && shared.Token != token {
		return
	}
	if err := m.store.Delete(ctx, m.storeKey); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to delete shared session")
	}
}

// Current returns the credential held right now without renewing it.
func (m *Manager) Current() Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// Timing returns the configured session timing.
func (m *Manager) Timing() Timing {
	return m.timing
}

func (m *Manager) loadShared(ctx context.Context, now time.Time) (Credential, bool) {
	if m.store == nil {
		return Credential{}, false
	}

	cred, ok, err := m.store.Load(ctx, m.storeKey)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load shared session, negotiating")
		return Credential{}, false
	}
	if !ok || cred.NeedsRefresh(now) {
		return Credential{}, false
	}

	negotiationsTotal.WithLabelValues(m.negotiator.Strategy(), "shared").Inc()
	m.logger.Debug().
		Str("ks", logging.MaskToken(cred.Token)).
		Time("issued_at", cred.IssuedAt).
		Msg("Reusing shared session")
	return cred, true
}

func (m *Manager) saveShared(ctx context.Context, cred Credential) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, m.storeKey, cred); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to save shared session")
	}
}
