// Package config loads the command line tool configuration from defaults, an
// optional YAML file and KALTURA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/client"
	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/pagination"
	"github.com/Sternrassler/kaltura-client/pkg/ratelimit"
	"github.com/Sternrassler/kaltura-client/pkg/session"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"kaltura.yaml",
	"kaltura.yml",
	"/etc/kaltura-client/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "KALTURA_CONFIG"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KALTURA_"

// Config is the complete tool configuration.
type Config struct {
	Kaltura        KalturaConfig   `koanf:"kaltura"`
	Session        SessionConfig   `koanf:"session"`
	BatchSize      int             `koanf:"batch_size" validate:"min=1,max=500"`
	MaxConcurrency int             `koanf:"max_concurrency" validate:"min=0,max=64"`
	Timeout        time.Duration   `koanf:"timeout" validate:"gt=0"`
	Retry          RetryConfig     `koanf:"retry"`
	Breaker        BreakerConfig   `koanf:"breaker"`
	RateLimit      RateLimitConfig `koanf:"rate_limit"`
	Redis          RedisConfig     `koanf:"redis"`
	Logging        LoggingConfig   `koanf:"logging"`
	Metrics        MetricsConfig   `koanf:"metrics"`
}

// KalturaConfig identifies the service and the credentials.
type KalturaConfig struct {
	URL         string `koanf:"url" validate:"required,url"`
	PartnerID   int    `koanf:"partner_id" validate:"gt=0"`
	UserID      string `koanf:"user_id"`
	TokenID     string `koanf:"token_id" validate:"required_without=AdminSecret,required_with=Token"`
	Token       string `koanf:"token" validate:"required_with=TokenID"`
	AdminSecret string `koanf:"admin_secret"`
	HashType    string `koanf:"hash_type" validate:"oneof=SHA1 SHA256 SHA512 MD5"`
	ClientTag   string `koanf:"client_tag"`
}

// SessionConfig sets the session validity and renewal margin.
type SessionConfig struct {
	Duration         time.Duration `koanf:"duration" validate:"gt=0"`
	RefreshThreshold time.Duration `koanf:"refresh_threshold" validate:"gte=0"`
}

// RetryConfig mirrors client.RetryConfig.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=10"`
	Delay       time.Duration `koanf:"delay" validate:"gte=0"`
	MaxDelay    time.Duration `koanf:"max_delay" validate:"gte=0"`
	Multiplier  float64       `koanf:"multiplier" validate:"gte=1"`
	Jitter      bool          `koanf:"jitter"`
}

// BreakerConfig mirrors client.BreakerConfig.
type BreakerConfig struct {
	Disabled     bool          `koanf:"disabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gte=0"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gte=0,lte=1"`
}

// RateLimitConfig mirrors ratelimit.Config.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`
}

// RedisConfig enables the shared session store and referenceId cache.
type RedisConfig struct {
	Addr        string        `koanf:"addr" validate:"omitempty,hostname_port"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db" validate:"gte=0"`
	RefCacheTTL time.Duration `koanf:"ref_cache_ttl" validate:"gte=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Pretty bool   `koanf:"pretty"`
}

// MetricsConfig configures the metrics endpoint. An empty address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`
}

func defaultConfig() *Config {
	retry := client.DefaultRetryConfig()
	breaker := client.DefaultBreakerConfig()
	rl := ratelimit.DefaultConfig()
	timing := session.DefaultTiming()

	return &Config{
		Kaltura: KalturaConfig{
			HashType: string(session.DefaultHashType),
		},
		Session: SessionConfig{
			Duration:         timing.Duration,
			RefreshThreshold: timing.RefreshThreshold,
		},
		BatchSize:      pagination.MaxBatchSize,
		MaxConcurrency: 4,
		Timeout:        60 * time.Second,
		Retry: RetryConfig{
			MaxAttempts: retry.MaxAttempts,
			Delay:       retry.Delay,
			MaxDelay:    retry.MaxDelay,
			Multiplier:  retry.BackoffMultiplier,
			Jitter:      retry.Jitter,
		},
		Breaker: BreakerConfig{
			MaxRequests:  breaker.MaxRequests,
			Interval:     breaker.Interval,
			Timeout:      breaker.Timeout,
			MinRequests:  breaker.MinRequests,
			FailureRatio: breaker.FailureRatio,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		},
		Redis: RedisConfig{
			RefCacheTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration. An empty path searches KALTURA_CONFIG and
// DefaultConfigPaths; no file at all leaves defaults and environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: config file: %w", kaltura.ErrConfiguration, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps the short variable names (without prefix) to keys.
var envMappings = map[string]string{
	"url":           "kaltura.url",
	"partner_id":    "kaltura.partner_id",
	"user_id":       "kaltura.user_id",
	"token_id":      "kaltura.token_id",
	"token":         "kaltura.token",
	"admin_secret":  "kaltura.admin_secret",
	"hash_type":     "kaltura.hash_type",
	"client_tag":    "kaltura.client_tag",
	"redis_addr":    "redis.addr",
	"redis_db":      "redis.db",
	"log_level":     "logging.level",
	"metrics_addr":  "metrics.addr",
	"batch_size":    "batch_size",
	"timeout":       "timeout",
	"requests_rate": "rate_limit.requests_per_second",
}

// envTransformFunc maps KALTURA_PARTNER_ID to kaltura.partner_id. Names
// outside envMappings use "__" as the level separator
// (KALTURA_RETRY__MAX_ATTEMPTS). KALTURA_CONFIG is skipped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	if strings.Contains(key, "__") {
		return strings.ReplaceAll(key, "__", ".")
	}
	return ""
}

var validate = validator.New()

// Validate checks field constraints and the session timing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", kaltura.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", kaltura.ErrConfiguration, err)
	}
	return c.timing().Validate()
}

func (c *Config) timing() session.Timing {
	return session.Timing{Duration: c.Session.Duration, RefreshThreshold: c.Session.RefreshThreshold}
}

// RedisClient returns a client for the configured Redis, or nil.
func (c *Config) RedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// ClientConfig maps the configuration onto client.Config. rdb may be nil.
func (c *Config) ClientConfig(rdb *redis.Client, logger zerolog.Logger) client.Config {
	cfg := client.DefaultConfig(c.Kaltura.URL, c.Kaltura.PartnerID, c.Kaltura.TokenID, c.Kaltura.Token)
	cfg.UserID = c.Kaltura.UserID
	cfg.Secret = c.Kaltura.AdminSecret
	cfg.HashType = session.HashType(c.Kaltura.HashType)
	cfg.ClientTag = c.Kaltura.ClientTag
	cfg.Timing = c.timing()
	cfg.Batch = pagination.BatchConfig{BatchSize: c.BatchSize}
	cfg.MaxConcurrency = c.MaxConcurrency
	cfg.Timeout = c.Timeout
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       c.Retry.MaxAttempts,
		Delay:             c.Retry.Delay,
		MaxDelay:          c.Retry.MaxDelay,
		BackoffMultiplier: c.Retry.Multiplier,
		Jitter:            c.Retry.Jitter,
	}
	cfg.Breaker = client.BreakerConfig{
		Disabled:     c.Breaker.Disabled,
		MaxRequests:  c.Breaker.MaxRequests,
		Interval:     c.Breaker.Interval,
		Timeout:      c.Breaker.Timeout,
		MinRequests:  c.Breaker.MinRequests,
		FailureRatio: c.Breaker.FailureRatio,
	}
	cfg.RateLimit = ratelimit.Config{
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
	}
	cfg.Redis = rdb
	cfg.RefCacheTTL = c.Redis.RefCacheTTL
	cfg.Logger = &logger
	return cfg
}
