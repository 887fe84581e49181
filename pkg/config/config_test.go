package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
	"github.com/Sternrassler/kaltura-client/pkg/session"
	"github.com/rs/zerolog"
)

const sampleYAML = `
kaltura:
  url: https://kmc.example.org
  partner_id: 4242
  user_id: exporter
  token_id: 0_abc
  token: secret-token
session:
  duration: 12h
  refresh_threshold: 30m
batch_size: 200
retry:
  max_attempts: 5
  delay: 250ms
redis:
  addr: localhost:6379
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kaltura.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Kaltura.URL != "https://kmc.example.org" || cfg.Kaltura.PartnerID != 4242 {
		t.Errorf("Kaltura = %+v", cfg.Kaltura)
	}
	if cfg.Session.Duration != 12*time.Hour || cfg.Session.RefreshThreshold != 30*time.Minute {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.BatchSize != 200 {
		t.Errorf("BatchSize = %d, want 200", cfg.BatchSize)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.Delay != 250*time.Millisecond {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	// Defaults survive for keys the file leaves out.
	if cfg.Kaltura.HashType != "SHA256" {
		t.Errorf("HashType = %q, want default SHA256", cfg.Kaltura.HashType)
	}
	if cfg.Breaker.FailureRatio != 0.6 {
		t.Errorf("FailureRatio = %v, want default 0.6", cfg.Breaker.FailureRatio)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("KALTURA_PARTNER_ID", "777")
	t.Setenv("KALTURA_LOG_LEVEL", "debug")
	t.Setenv("KALTURA_RETRY__MAX_ATTEMPTS", "2")
	t.Setenv("KALTURA_SESSION__DURATION", "2h")
	t.Setenv("KALTURA_UNRELATED", "ignored")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Kaltura.PartnerID != 777 {
		t.Errorf("PartnerID = %d, want 777", cfg.Kaltura.PartnerID)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Retry.MaxAttempts != 2 {
		t.Errorf("Retry.MaxAttempts = %d, want 2", cfg.Retry.MaxAttempts)
	}
	if cfg.Session.Duration != 2*time.Hour {
		t.Errorf("Session.Duration = %v, want 2h", cfg.Session.Duration)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("KALTURA_URL", "https://kmc.example.org")
	t.Setenv("KALTURA_PARTNER_ID", "1")
	t.Setenv("KALTURA_ADMIN_SECRET", "admin")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kaltura.AdminSecret != "admin" {
		t.Errorf("AdminSecret = %q", cfg.Kaltura.AdminSecret)
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(ConfigPathEnvVar, writeConfig(t, sampleYAML))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Kaltura.PartnerID != 4242 {
		t.Errorf("PartnerID = %d, want 4242", cfg.Kaltura.PartnerID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, kaltura.ErrConfiguration) {
		t.Errorf("Load() error = %v, want ErrConfiguration", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Kaltura.URL = "https://kmc.example.org"
		cfg.Kaltura.PartnerID = 1
		cfg.Kaltura.TokenID = "0_abc"
		cfg.Kaltura.Token = "token"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid app token", func(*Config) {}, false},
		{"valid admin secret", func(c *Config) { c.Kaltura.TokenID, c.Kaltura.Token, c.Kaltura.AdminSecret = "", "", "s" }, false},
		{"missing url", func(c *Config) { c.Kaltura.URL = "" }, true},
		{"bad url", func(c *Config) { c.Kaltura.URL = "not a url" }, true},
		{"zero partner", func(c *Config) { c.Kaltura.PartnerID = 0 }, true},
		{"no credentials", func(c *Config) { c.Kaltura.TokenID, c.Kaltura.Token = "", "" }, true},
		{"token without id", func(c *Config) { c.Kaltura.TokenID = "" }, true},
		{"unknown hash", func(c *Config) { c.Kaltura.HashType = "CRC32" }, true},
		{"batch too large", func(c *Config) { c.BatchSize = 501 }, true},
		{"batch zero", func(c *Config) { c.BatchSize = 0 }, true},
		{"short keep alive", func(c *Config) { c.Session.Duration = 15 * time.Minute; c.Session.RefreshThreshold = 10 * time.Minute }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad redis addr", func(c *Config) { c.Redis.Addr = "localhost" }, true},
		{"failure ratio above one", func(c *Config) { c.Breaker.FailureRatio = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, kaltura.ErrConfiguration) {
				t.Errorf("Validate() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"KALTURA_URL":               "kaltura.url",
		"KALTURA_TOKEN":             "kaltura.token",
		"KALTURA_REDIS_ADDR":        "redis.addr",
		"KALTURA_BREAKER__DISABLED": "breaker.disabled",
		"KALTURA_RATE_LIMIT__BURST": "rate_limit.burst",
		"KALTURA_CONFIG":            "",
		"KALTURA_SOMETHING_ELSE":    "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	rdb := cfg.RedisClient()
	if rdb == nil {
		t.Fatal("RedisClient() = nil with redis.addr set")
	}
	defer rdb.Close()

	cc := cfg.ClientConfig(rdb, zerolog.Nop())
	if cc.Endpoint != "https://kmc.example.org" || cc.PartnerID != 4242 || cc.UserID != "exporter" {
		t.Errorf("identity = %q %d %q", cc.Endpoint, cc.PartnerID, cc.UserID)
	}
	if cc.AppTokenID != "0_abc" || cc.AppToken != "secret-token" {
		t.Errorf("app token = %q %q", cc.AppTokenID, cc.AppToken)
	}
	if cc.HashType != session.HashSHA256 {
		t.Errorf("HashType = %q", cc.HashType)
	}
	if cc.Batch.BatchSize != 200 {
		t.Errorf("BatchSize = %d", cc.Batch.BatchSize)
	}
	if cc.Timing.Duration != 12*time.Hour {
		t.Errorf("Timing = %+v", cc.Timing)
	}
	if cc.Retry.MaxAttempts != 5 {
		t.Errorf("Retry = %+v", cc.Retry)
	}
	if cc.Redis != rdb || cc.Logger == nil {
		t.Error("redis client or logger not passed through")
	}

	cfg.Redis.Addr = ""
	if cfg.RedisClient() != nil {
		t.Error("RedisClient() != nil without redis.addr")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%q): %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Errorf("restore working directory: %v", err)
		}
	})
}
