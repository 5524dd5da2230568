// Package testutil provides shared helpers for package tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/pipegrid/internal/ctxlog"
)

// Context returns a context carrying a discarding logger, satisfying the
// ctxlog contract without polluting test output. Failing tests that need the
// logs can swap the handler for one writing to t.Log.
func Context(tb testing.TB) context.Context {
	tb.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

// WriteFile writes content under dir, creating intermediate directories, and
// returns the written file's path.
func WriteFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tb, os.WriteFile(path, []byte(content), 0o644))
	return path
}
