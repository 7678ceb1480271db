// Package logging configures zerolog for the catalog client and its tools.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentClient     = "catalog-client"
	ComponentDetail     = "detail"
	ComponentPagination = "pagination"
	ComponentSearch     = "search"
	ComponentFavorites  = "favorites"
	ComponentCLI        = "cli"
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

// Setup configures the global zerolog logger and returns it.
// Loggers obtained from NewLogger afterwards inherit the configuration.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// parseLevel converts LogLevel to zerolog.Level. Unknown levels mean info.
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
// Debug: request flow and internal state
//   - Cache decisions (fresh hit, conditional request, 304)
//   - Page fetch start, discarded stale pages
//   - Detail session start and settlement
//   - Debounced query emission and suppression
//
// Info: normal operation events
//   - Page loaded, end of catalog reached
//   - Favorite added or removed
//
// Warn: failures that leave the caller in a usable state
//   - Non-2xx catalog responses
//   - Failed page fetch (collection keeps its items)
//   - Failed detail sub-fetch (dropped from the bundle)
//   - Cache errors (request goes to the network instead)
//
// Error: conditions requiring attention
//   - Transport failures
//   - Configuration errors
//
// Context Fields:
//   - endpoint: request path with numeric ids collapsed
//   - status: HTTP status code
//   - error_class: invalid_url, network, decode, server
//   - offset, limit: page window
//   - session_id: detail session
//   - uri: related resource URI
//   - etag, ttl: cache entry details
