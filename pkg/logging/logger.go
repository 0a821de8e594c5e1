package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Config for logger
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
	Output io.Writer
}

// Logger wraps slog.Logger
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a level name to its slog level
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New creates a new logger. Diagnostics go to stderr unless Output is set.
func New(cfg Config) *Logger {
	// Unknown levels fall back to info
	level, _ := ParseLevel(cfg.Level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
