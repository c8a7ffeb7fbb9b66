package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestConsoleSplit(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewConsoleLogger(slog.LevelInfo, &out, &errOut)

	logger.Debug("hidden")
	logger.Info("erasing", "address", "0x08000000")
	logger.Error("download failed")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "erasing")
	assert.Contains(t, out.String(), "address=0x08000000")
	assert.NotContains(t, out.String(), "download failed")
	assert.Contains(t, errOut.String(), "download failed")
	assert.NotContains(t, errOut.String(), "erasing")
}

func TestTraceLevel(t *testing.T) {
	var out bytes.Buffer
	logger := NewConsoleLogger(LevelTrace, &out, &out)

	logger.Log(context.Background(), LevelTrace, "control transfer")
	assert.Contains(t, out.String(), "control transfer")
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upsilon.log")

	logger, closers, err := SetupLogger("debug", path)
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Debug("reading storage")
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reading storage")
}

func TestSetupLoggerBadFile(t *testing.T) {
	_, _, err := SetupLogger("info", filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestWithSession(t *testing.T) {
	var out bytes.Buffer
	logger, id := WithSession(NewConsoleLogger(slog.LevelInfo, &out, &out))

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	logger.Info("connected")
	assert.Contains(t, out.String(), "session="+id)
}
