// Package logging configures zerolog for the GOV.UK API clients and the
// govuk command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component names attached to every log line as "component".
const (
	ComponentClient     = "govuk-client"
	ComponentContent    = "govuk-content"
	ComponentSearch     = "govuk-search"
	ComponentRateLimit  = "ratelimit"
	ComponentPagination = "pagination"
	ComponentCLI        = "govuk-cli"
)

// Format selects the log encoding.
type Format string

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"

	// FormatConsole writes human-readable, coloured lines.
	FormatConsole Format = "console"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string

	// Format is the output encoding (default FormatJSON).
	Format Format

	// Output receives log lines (default os.Stderr).
	Output io.Writer
}

// DefaultConfig logs warnings and errors as JSON to stderr once passed to
// Setup. Without Setup, loggers inherit zerolog's global level and output.
func DefaultConfig() Config {
	return Config{
		Level:  "warn",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// Setup validates cfg and installs the resulting logger as the global
// zerolog logger.
func Setup(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch cfg.Format {
	case "", FormatJSON:
	case FormatConsole:
		output = zerolog.ConsoleWriter{Out: output}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger, nil
}

// ParseLevel converts a level name to a zerolog.Level. An empty name is
// info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log level guidelines:
//
// Debug: every request URL and attempt, default queries, pagination plans.
// Info: completed batch fetches, CLI progress.
// Warn: retries exhausted, non-2xx responses, Redis fallbacks.
// Error: terminal request failures.
//
// Context fields: api, url, attempt, error_class, limiter, offset, pages,
// results, duration.
