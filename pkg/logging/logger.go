// Package logging configures the zerolog logger shared by the Kaltura
// client packages and the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. A nil Output
// writes to os.Stderr.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// MaskToken shortens a session token or secret for logs. Only the first
// and last four characters are kept, which is enough to tell sessions
// apart without making them usable.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// ParseLevel validates a level name such as a --log-level flag value.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Each exported page (page index, records, emitted)
//   - Cache operations (hit/miss, key)
//   - Shared session reuse
//   - Upload pipeline steps
//
// Info: Normal operation events
//   - Client ready, session renewed
//   - Re-anchoring at the result window ceiling
//   - Export and report completion
//   - Entry deleted, blocked or uploaded
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Integrity warnings (count mismatch, duplicate referenceId)
//   - Session rejected by the service
//   - Cache errors (fallback to the service)
//
// Error: Error conditions requiring attention
//   - Calls failed after retries
//   - Session negotiation failures
//   - Aborted exports
//
// Context Fields:
//   - ks: session token, always passed through MaskToken
//   - component: package emitting the event (kaltura-client, session, cli)
//   - action: service.action of the call
//   - attempt: attempt number of a retried call
//   - error_class: transient, rejected, session, circuit_open, cancelled, other
//   - export: export name; page, emitted, lower_bound while paging
//   - reference_id, entry_id: identifiers an event is about
//   - kind, subject: integrity warning classification
