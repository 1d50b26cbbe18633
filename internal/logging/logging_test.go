package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "debug", JSON: true, Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	With("provider", "acme").Debug("polling", "job", "42")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "polling", rec["msg"])
	assert.Equal(t, "acme", rec["provider"])
	assert.Equal(t, "42", rec["job"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Configure(Options{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Options{}) })

	L().Info("hidden")
	assert.Zero(t, buf.Len())
	L().Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestInitFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "error")
	t.Setenv(EnvJSON, "true")
	InitFromEnv()
	t.Cleanup(func() { Configure(Options{}) })
	assert.False(t, L().Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, L().Enabled(t.Context(), slog.LevelError))
}
