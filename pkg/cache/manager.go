package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/kaltura-client/pkg/logging"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss is returned for absent and expired keys
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored value cannot be decoded
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores CacheEntry values in Redis. Sessions and referenceIds
// share one Manager; CacheKey.Kind keeps them apart.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a manager on redisClient, which must not be nil.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("cache: nil redis client")
	}
	return &Manager{
		redis:  redisClient,
		logger: logging.NewLogger("cache"),
	}
}

// Get returns the entry stored under key, or ErrCacheMiss. An entry found
// past its expiry is removed and reported as a miss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	k := key.String()

	data, err := m.redis.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, m.miss(key, k)
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", k, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEntry, k, err)
	}
	if entry.IsExpired() {
		if err := m.Delete(ctx, key); err != nil {
			m.logger.Warn().Err(err).Str("key", k).Msg("Failed to drop expired entry")
		}
		return nil, m.miss(key, k)
	}

	CacheHits.WithLabelValues(key.Kind).Inc()
	m.logger.Debug().Str("key", k).Msg("Cache hit")
	return &entry, nil
}

func (m *Manager) miss(key CacheKey, k string) error {
	CacheMisses.WithLabelValues(key.Kind).Inc()
	m.logger.Debug().Str("key", k).Msg("Cache miss")
	return ErrCacheMiss
}

// Set stores entry under key until entry.Expires. Entries that are already
// expired are not written.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cache entry: %w", err)
	}

	k := key.String()
	if err := m.redis.Set(ctx, k, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", k, err)
	}

	CacheSize.Set(float64(len(data)))
	m.logger.Debug().Str("key", k).Dur("ttl", ttl).Msg("Cache set")
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	k := key.String()
	if err := m.redis.Del(ctx, k).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", k, err)
	}
	return nil
}
