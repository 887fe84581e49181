package cache

import (
	"time"

	"github.com/goccy/go-json"
)

// CacheEntry represents a cached value.
type CacheEntry struct {
	// Data is the encoded value
	Data json.RawMessage `json:"data"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this value
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry encodes value into an entry that expires after ttl.
func NewEntry(value any, ttl time.Duration) (*CacheEntry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &CacheEntry{Data: data, Expires: now.Add(ttl), CachedAt: now}, nil
}

// Decode unmarshals the entry value into v.
func (e *CacheEntry) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
