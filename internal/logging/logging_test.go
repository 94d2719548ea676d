package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestSetup_FileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lorekit.log")

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: path,
	})
	require.NoError(t, err)

	logger.Info("pack indexed", slog.String("pack_id", "test_pack"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "pack indexed", entry["msg"])
	assert.Equal(t, "test_pack", entry["pack_id"])
}

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lorekit.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()

	// Two writes that together cross the 1MB threshold.
	big := []byte(strings.Repeat("x", 700*1024))
	_, err = w.Write(big)
	require.NoError(t, err)
	_, err = w.Write(big)
	require.NoError(t, err)

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")
}
