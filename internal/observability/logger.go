package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger writes JSON in production and text elsewhere. level overrides the
// environment default of info in production and debug otherwise.
func NewLogger(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	prod := env == "prod" || env == "production"
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if prod {
		opts.Level = slog.LevelInfo
	}
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(level))); err == nil {
		opts.Level = parsed
	}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if prod {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", "feyza-trust")
}

// ForComponent tags every record with the emitting binary or subsystem.
func ForComponent(logger *slog.Logger, component string) *slog.Logger {
	component = strings.TrimSpace(component)
	if component == "" {
		return logger
	}
	return logger.With("component", component)
}
