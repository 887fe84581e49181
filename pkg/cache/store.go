package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/session"
)

// SessionStore implements session.CredentialStore on Redis.
type SessionStore struct {
	manager *Manager
}

// NewSessionStore creates a credential store backed by manager.
func NewSessionStore(manager *Manager) *SessionStore {
	return &SessionStore{manager: manager}
}

// Load implements session.CredentialStore.
func (s *SessionStore) Load(ctx context.Context, key string) (session.Credential, bool, error) {
	entry, err := s.manager.Get(ctx, CacheKey{Kind: KindSession, Subject: key})
	if errors.Is(err, ErrCacheMiss) {
		return session.Credential{}, false, nil
	}
	if err != nil {
		return session.Credential{}, false, err
	}

	var cred session.Credential
	if err := entry.Decode(&cred); err != nil {
		return session.Credential{}, false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return cred, true, nil
}

// Save implements session.CredentialStore. The entry expires when the
// credential is due for renewal.
func (s *SessionStore) Save(ctx context.Context, key string, cred session.Credential) error {
	ttl := time.Until(cred.IssuedAt.Add(cred.Timing.KeepAlive()))
	entry, err := NewEntry(cred, ttl)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return s.manager.Set(ctx, CacheKey{Kind: KindSession, Subject: key}, entry)
}

// Delete implements session.CredentialStore.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	return s.manager.Delete(ctx, CacheKey{Kind: KindSession, Subject: key})
}

// ReferenceCache maps referenceIds to entry ids.
type ReferenceCache struct {
	manager   *Manager
	partnerID int
	ttl       time.Duration
}

// NewReferenceCache creates a reference cache scoped to one partner.
func NewReferenceCache(manager *Manager, partnerID int, ttl time.Duration) *ReferenceCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReferenceCache{manager: manager, partnerID: partnerID, ttl: ttl}
}

// Get returns the cached entry id of ref. Misses return ErrCacheMiss.
func (c *ReferenceCache) Get(ctx context.Context, ref string) (string, error) {
	entry, err := c.manager.Get(ctx, c.key(ref))
	if err != nil {
		return "", err
	}
	var id string
	if err := entry.Decode(&id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return id, nil
}

// Set remembers the entry id of ref.
func (c *ReferenceCache) Set(ctx context.Context, ref, entryID string) error {
	entry, err := NewEntry(entryID, c.ttl)
	if err != nil {
		return err
	}
	return c.manager.Set(ctx, c.key(ref), entry)
}

// Forget drops ref from the cache.
func (c *ReferenceCache) Forget(ctx context.Context, ref string) error {
	return c.manager.Delete(ctx, c.key(ref))
}

func (c *ReferenceCache) key(ref string) CacheKey {
	return CacheKey{Kind: KindReference, PartnerID: c.partnerID, Subject: ref}
}
