// Package logging is a small layer over log/slog. Components depend on the
// Logger interface and get a child logger tagged with their component name.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a Level.
func ParseLevel(s string) (Level, error) {
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
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the logging surface used across the harness.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// Component returns a child logger tagged with the given component name.
	Component(name string) Logger
}

type Config struct {
	Level  Level
	Format string // json or text
	Output io.Writer
}

type slogLogger struct {
	*slog.Logger
}

func (l *slogLogger) Component(name string) Logger {
	return &slogLogger{Logger: l.Logger.With("component", name)}
}

// New builds a Logger from cfg. Output defaults to stderr, format to text.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level.slog()}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return &slogLogger{Logger: slog.New(handler)}
}

// FromSlog adapts an existing *slog.Logger.
func FromSlog(l *slog.Logger) Logger {
	return &slogLogger{Logger: l}
}

// Default wraps slog.Default().
func Default() Logger {
	return FromSlog(slog.Default())
}

type noop struct{}

func (noop) Debug(string, ...any)     {}
func (noop) Info(string, ...any)      {}
func (noop) Warn(string, ...any)      {}
func (noop) Error(string, ...any)     {}
func (n noop) Component(string) Logger { return n }

// NoOp discards everything.
func NoOp() Logger {
	return noop{}
}
