// Package client provides the Kaltura client facade: an authenticated,
// rate limited and retrying executor plus the listing, export, lookup,
// upload, app token and report operations built on it.
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/cache"
	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/pagination"
	"github.com/Sternrassler/kaltura-client/pkg/ratelimit"
	"github.com/Sternrassler/kaltura-client/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client is the main Kaltura client.
type Client struct {
	executor *Executor
	sessions *session.Manager
	refs     *cache.ReferenceCache
	config   Config
	ceiling  int
	logger   zerolog.Logger

	// batchMu guards batch. Operations read it once through Batch().
	batchMu sync.RWMutex
	batch   pagination.BatchConfig
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the service base URL, e.g. https://kmc.example.org
	Endpoint string

	PartnerID int
	UserID    string

	// Secret is the admin secret. When set it takes precedence over the app
	// token; intended for generating app tokens only.
	Secret string

	AppTokenID string
	AppToken   string
	HashType   session.HashType

	// Session timing (duration minus refresh threshold must be >= 600s)
	Timing session.Timing

	// Page size of every paginated call
	Batch pagination.BatchConfig

	// Retry and circuit breaker
	Retry   RetryConfig
	Breaker BreakerConfig

	// Client-side request pacing
	RateLimit ratelimit.Config

	// Redis is optional. When set, sessions are shared between processes
	// and referenceId lookups are cached.
	Redis       *redis.Client
	RefCacheTTL time.Duration

	// Concurrency of id batch lookups
	MaxConcurrency int

	ClientTag string
	Timeout   time.Duration

	// Logger defaults to the global logger with component "kaltura-client".
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration for an app token account.
func DefaultConfig(endpoint string, partnerID int, appTokenID, appToken string) Config {
	return Config{
		Endpoint:       endpoint,
		PartnerID:      partnerID,
		AppTokenID:     appTokenID,
		AppToken:       appToken,
		HashType:       session.DefaultHashType,
		Timing:         session.DefaultTiming(),
		Batch:          pagination.DefaultBatchConfig(),
		Retry:          DefaultRetryConfig(),
		Breaker:        DefaultBreakerConfig(),
		RateLimit:      ratelimit.DefaultConfig(),
		RefCacheTTL:    24 * time.Hour,
		MaxConcurrency: 4,
		Timeout:        60 * time.Second,
	}
}

// New creates a client and negotiates the first session, so bad
// credentials fail here rather than on the first operation.
func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := log.With().Str("component", "kaltura-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit, logger)
	transport, err := kaltura.NewHTTPTransport(kaltura.HTTPTransportConfig{
		Endpoint:  cfg.Endpoint,
		ClientTag: cfg.ClientTag,
		Timeout:   cfg.Timeout,
		Limiter:   limiter,
	}, logger)
	if err != nil {
		return nil, err
	}

	return newClient(ctx, cfg, transport, logger)
}

func validate(cfg Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", kaltura.ErrConfiguration)
	}
	if cfg.PartnerID <= 0 {
		return fmt.Errorf("%w: partner id must be positive (got %d)", kaltura.ErrConfiguration, cfg.PartnerID)
	}
	if err := cfg.Timing.Validate(); err != nil {
		return err
	}
	if err := cfg.Batch.Validate(); err != nil {
		return err
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("%w: max concurrency must not be negative", kaltura.ErrConfiguration)
	}
	return nil
}

func newClient(ctx context.Context, cfg Config, transport kaltura.Transport, logger zerolog.Logger) (*Client, error) {
	executor := NewExecutor(transport, cfg.Retry, cfg.Breaker, logger)

	negotiator, err := session.NewNegotiator(session.Credentials{
		PartnerID:  cfg.PartnerID,
		UserID:     cfg.UserID,
		Secret:     cfg.Secret,
		AppTokenID: cfg.AppTokenID,
		AppToken:   cfg.AppToken,
		HashType:   cfg.HashType,
	}, executor.Caller(), logger.With().Str("component", "session").Logger())
	if err != nil {
		return nil, err
	}

	managerCfg := session.ManagerConfig{
		Negotiator: negotiator,
		Timing:     cfg.Timing,
		Logger:     logger.With().Str("component", "session").Logger(),
	}

	var refs *cache.ReferenceCache
	if cfg.Redis != nil {
		cacheManager := cache.NewManager(cfg.Redis)
		managerCfg.Store = cache.NewSessionStore(cacheManager)
		managerCfg.StoreKey = session.StoreKey(negotiator.Strategy(), cfg.PartnerID, cfg.UserID)
		refs = cache.NewReferenceCache(cacheManager, cfg.PartnerID, cfg.RefCacheTTL)
	}

	sessions, err := session.NewManager(managerCfg)
	if err != nil {
		return nil, err
	}
	executor.BindSessions(sessions)

	c := &Client{
		executor: executor,
		sessions: sessions,
		refs:     refs,
		batch:    cfg.Batch,
		config:   cfg,
		ceiling:  pagination.ResultWindowCeiling,
		logger:   logger,
	}

	if _, err := sessions.LiveSession(ctx); err != nil {
		return nil, err
	}

	logger.Info().
		Int("partner_id", cfg.PartnerID).
		Str("strategy", negotiator.Strategy()).
		Int("batch_size", cfg.Batch.BatchSize).
		Bool("shared_session", cfg.Redis != nil).
		Msg("Kaltura client ready")

	return c, nil
}

// Batch returns the batch configuration.
func (c *Client) Batch() pagination.BatchConfig {
	c.batchMu.RLock()
	defer c.batchMu.RUnlock()
	return c.batch
}

// SetBatchSize changes the page size of later calls. Operations already
// running keep the size they started with.
func (c *Client) SetBatchSize(size int) error {
	batch := pagination.BatchConfig{BatchSize: size}
	if err := batch.Validate(); err != nil {
		return err
	}
	c.batchMu.Lock()
	c.batch = batch
	c.batchMu.Unlock()
	return nil
}

// Session returns the current session credential without renewing it.
func (c *Client) Session() session.Credential {
	return c.sessions.Current()
}

// SessionInfo describes the live session as seen by the service.
func (c *Client) SessionInfo(ctx context.Context) (kaltura.SessionInfo, error) {
	raw, err := c.executor.Do(ctx, kaltura.NewCall("session", "get", nil), true)
	if err != nil {
		return kaltura.SessionInfo{}, err
	}
	return kaltura.Decode[kaltura.SessionInfo](raw)
}

// do executes an authenticated call and decodes its result.
func do[T any](ctx context.Context, c *Client, call kaltura.Call) (T, error) {
	raw, err := c.executor.Do(ctx, call, true)
	if err != nil {
		var zero T
		return zero, err
	}
	return kaltura.Decode[T](raw)
}

func (c *Client) warn(w kaltura.IntegrityWarning) {
	integrityWarningsTotal.WithLabelValues(string(w.Kind)).Inc()
	c.logger.Warn().
		Str("kind", string(w.Kind)).
		Str("subject", w.Subject).
		Msg(w.Detail)
}
