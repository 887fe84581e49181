// Package session owns the authenticated session lifecycle: negotiating a
// privileged session token, deciding when it must be renewed, and sharing one
// token between concurrent callers.
package session

import (
	"fmt"
	"time"

	"github.com/Sternrassler/kaltura-client/pkg/kaltura"
)

// MinKeepAlive is the smallest allowed gap between a session's duration and
// its refresh threshold. Shorter gaps renew so often that abandoned sessions
// pile up on the service.
const MinKeepAlive = 600 * time.Second

// Timing controls session validity and proactive renewal.
type Timing struct {
	// Duration is the validity requested from the service.
	Duration time.Duration

	// RefreshThreshold is subtracted from Duration to decide renewal.
	RefreshThreshold time.Duration
}

// DefaultTiming returns a 24h session renewed one hour before expiry.
func DefaultTiming() Timing {
	return Timing{
		Duration:         24 * time.Hour,
		RefreshThreshold: time.Hour,
	}
}

// Validate checks Duration - RefreshThreshold >= MinKeepAlive.
func (t Timing) Validate() error {
	if t.Duration <= 0 {
		return fmt.Errorf("%w: session duration must be positive (got %s)", kaltura.ErrConfiguration, t.Duration)
	}
	if t.RefreshThreshold < 0 {
		return fmt.Errorf("%w: refresh threshold must not be negative (got %s)", kaltura.ErrConfiguration, t.RefreshThreshold)
	}
	if t.KeepAlive() < MinKeepAlive {
		return fmt.Errorf("%w: session duration %s minus refresh threshold %s must be at least %s",
			kaltura.ErrConfiguration, t.Duration, t.RefreshThreshold, MinKeepAlive)
	}
	return nil
}

// KeepAlive returns how long a credential is used before renewal.
func (t Timing) KeepAlive() time.Duration {
	return t.Duration - t.RefreshThreshold
}

// Credential is an issued session token. Credentials are immutable values;
// renewal replaces the whole credential.
type Credential struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
	Timing   Timing    `json:"timing"`
}

// IsZero reports whether the credential carries no token.
func (c Credential) IsZero() bool {
	return c.Token == ""
}

// Age returns the time elapsed since issuance.
func (c Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.IssuedAt)
}

// NeedsRefresh reports whether the credential is empty or past its keep-alive window.
func (c Credential) NeedsRefresh(now time.Time) bool {
	return c.IsZero() || c.Age(now) >= c.Timing.KeepAlive()
}

// ExpiresAt returns when the service will stop accepting the token.
func (c Credential) ExpiresAt() time.Time {
	return c.IssuedAt.Add(c.Timing.Duration)
}
