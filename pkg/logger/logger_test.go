package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})

	log.Debug("hidden")
	log.Info("Registered knowledge base", "kb", "http://example.org/kb1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "Registered knowledge base", record["msg"])
	assert.Equal(t, "http://example.org/kb1", record["kb"])
}

func TestNewLoggerSkipsColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: slog.LevelInfo, Color: true, Output: &buf})

	log.Error("Long poll terminated")

	assert.NotContains(t, buf.String(), colorRed)
	assert.Contains(t, buf.String(), "Long poll terminated")
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).With("kb", "kb1")

	log.Warn("Using empty binding set")
	log.Info("Renewed lease")
	log.Debug("Awaiting long poll")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], colorYellow))
	assert.True(t, strings.HasPrefix(lines[1], colorGreen))
	assert.False(t, strings.HasPrefix(lines[2], "\033["))
	assert.Contains(t, lines[2], "kb=kb1")
}
