// Package testutil provides test loggers and file fixtures.
package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// NewTestLogger returns a debug-level logger that routes records through t.Log,
// so they only show for failed tests or under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return NewLevelLogger(t, slog.LevelDebug)
}

// NewLevelLogger is NewTestLogger with a minimum level.
func NewLevelLogger(t testing.TB, level slog.Leveler) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(lineWriter{t}, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: dropTime,
	}))
}

// dropTime removes the record time; t.Log output is already ordered.
func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// lineWriter logs one record per t.Log call without the handler's newline.
type lineWriter struct {
	t testing.TB
}

func (w lineWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
