// Package testlog bootstraps quiet, env-tunable logging for tests.
package testlog

import (
	"io"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/danmuck/livyctl/internal/observability"
)

// Start returns a per-test logger. Output is discarded unless
// LIVYCTL_LOG_LEVEL asks for it, which keeps go test output readable
// while leaving a debugging hook.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	lvl, ok := observability.ParseLevel(os.Getenv(observability.EnvLogLevel))
	if !ok {
		return zerolog.New(io.Discard)
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}
	return zerolog.New(output).Level(lvl).With().Str("test", t.Name()).Logger()
}
