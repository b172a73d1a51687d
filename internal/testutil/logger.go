// Package testutil holds shared helpers for package tests.
package testutil

import (
	"log/slog"
	"strings"
	"testing"
)

// NewTestLogger routes slog records through t.Log, so log lines show
// up interleaved with the test's own output and only on failure or
// under -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(logSink{tb: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// logSink adapts testing.TB to io.Writer for the slog handler.
type logSink struct {
	tb testing.TB
}

func (s logSink) Write(p []byte) (int, error) {
	s.tb.Helper()
	s.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
