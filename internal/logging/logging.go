// Package logging builds the application's charm loggers.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New creates a [log.Logger] writing to w with timestamps and caller
// reporting. w defaults to [os.Stderr].
func New(w io.Writer, level log.Level) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true, ReportCaller: true})
	logger.SetLevel(level)
	return logger
}

// Discard returns a logger that drops everything. The TUI uses it when no log
// file was requested, since stderr belongs to the terminal UI.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OpenFile appends to path and returns a logger on it plus a close func.
func OpenFile(path string, level log.Level) (*log.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(f, level), f.Close, nil
}

// With returns a child logger carrying kv on every entry.
func With(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}
