package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"critical", LevelCritical},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNew_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "warn", Out: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestCritical_RendersLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "critical", Out: &buf})
	require.NoError(t, err)
	defer closeFn()

	logger.Error("not critical")
	Critical(logger, "log in failed", "error", "bad token")

	out := buf.String()
	assert.NotContains(t, out, "not critical")
	assert.Contains(t, out, "level=CRITICAL")
	assert.Contains(t, out, "log in failed")
}

func TestNew_WritesAndTruncatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-run.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0644))

	var buf bytes.Buffer
	logger, closeFn, err := New(Options{File: path, Out: &buf})
	require.NoError(t, err)

	logger.Info("config loaded")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "previous run")
	assert.Contains(t, string(data), "config loaded")
	assert.Contains(t, buf.String(), "config loaded")
}

func TestNew_AppendKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-run.log")
	require.NoError(t, os.WriteFile(path, []byte("no config file\n"), 0644))

	logger, closeFn, err := New(Options{File: path, Out: &bytes.Buffer{}, Append: true})
	require.NoError(t, err)

	logger.Info("config loaded")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "no config file")
	assert.Contains(t, string(data), "config loaded")
}

func TestNew_BadFile(t *testing.T) {
	_, _, err := New(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
