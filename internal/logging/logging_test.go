package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "project", "demo")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "demo", rec["project"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", "text").Info("hello", "n", 3)
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "n=3")
}

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "coderag.log")
	logger, cleanup, err := Setup(Config{Level: "info", Format: "text", FilePath: path, Quiet: true})
	require.NoError(t, err)

	logger.Info("index run complete", "project", "demo")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "index run complete")
	assert.Contains(t, string(data), "project=demo")
}

func TestSetup_QuietWithoutFileDiscards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Quiet: true})
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, logger)
	logger.Error("goes nowhere")
}
