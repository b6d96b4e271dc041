// Package logging configures the zerolog loggers shared by every subsystem.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog to provide subsystem-scoped child loggers.
type Logger struct {
	zl     zerolog.Logger
	closer io.Closer
}

// Options selects where log output goes. File is optional; when set, JSON
// lines are appended to it in addition to the console stream.
type Options struct {
	Level        string
	File         string
	ConsoleStyle string // "pretty" | "json"
	Console      io.Writer
}

// New creates a root logger writing to the given writer at the specified level.
// If w is nil, defaults to pretty console output on stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
	return &Logger{zl: zl}
}

// NewWithOptions builds a logger that tees console output and an optional
// log file. Call Close to release the file handle.
func NewWithOptions(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.ConsoleStyle != "json" {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}

	if opts.File == "" {
		return New(console, opts.Level), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	l := New(zerolog.MultiLevelWriter(console, f), opts.Level)
	l.closer = f
	return l, nil
}

// Sub returns a child logger tagged with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

// Debug logs at debug level.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info logs at info level.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn logs at warn level.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error logs at error level.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// Close releases the log file, if any. Child loggers share the root's file
// and must not be used after the root is closed.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// parseLevel maps a config level name to zerolog. "silent" turns logging
// off; unknown names fall back to info.
func parseLevel(s string) zerolog.Level {
	if s == "silent" {
		return zerolog.Disabled
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
