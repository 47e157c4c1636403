package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("marketd", "test", Options{Output: &buf})
	logger.Info("market.deposit", "mint_amount", "100")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "market.deposit", record["message"])
	require.Equal(t, "INFO", record["severity"])
	require.Equal(t, "marketd", record["service"])
	require.Equal(t, "test", record["env"])
	require.Equal(t, "100", record["mint_amount"])
	require.Contains(t, record, "timestamp")
}

func TestSetupLevelAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "marketd.log")
	logger := Setup("marketd", "", Options{Output: &buf, Level: "warn", File: path, MaxSizeMB: 1})
	logger.Info("dropped")
	logger.Warn("kept")

	require.NotContains(t, buf.String(), "dropped")
	require.Contains(t, buf.String(), "kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "kept")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
}
