package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_JSONFields(t *testing.T) {
	out := filepath.Join(t.TempDir(), "gdxgrab.log")

	logger, err := NewLogger(Config{
		Level:      "debug",
		Format:     "json",
		OutputPath: out,
		Fields:     map[string]string{"service": "gdxgrab", "run_id": "abc"},
	})
	require.NoError(t, err)

	logger.Debug("Fetched")
	require.NoError(t, logger.Sync())

	b, err := os.ReadFile(out)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(b))), &line))
	assert.Equal(t, "Fetched", line["msg"])
	assert.Equal(t, "gdxgrab", line["service"])
	assert.Equal(t, "abc", line["run_id"])
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	out := filepath.Join(t.TempDir(), "gdxgrab.log")

	logger, err := NewLogger(Config{Level: "chatty", OutputPath: out})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Using existing archive zipfile")
	require.NoError(t, logger.Sync())

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hidden")
	assert.Contains(t, string(b), "INFO")
	assert.Contains(t, string(b), "Using existing archive zipfile")
}

func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestLogStep(t *testing.T) {
	out := filepath.Join(t.TempDir(), "gdxgrab.log")
	logger, err := NewLogger(Config{Level: "info", Format: "json", OutputPath: out})
	require.NoError(t, err)

	yearLogger := WithField(logger, "year", 2014)
	LogStep(yearLogger, "year", "Grab and extract gdx files")

	listLogger := WithFields(logger, map[string]any{"start": "2014-01-01", "end": "2014-01-31"})
	LogStep(listLogger, "filelist", "Building file name list", zap.Int("files", 3))
	require.NoError(t, logger.Sync())

	lines := readJSONLines(t, out)
	require.Len(t, lines, 2)

	assert.Equal(t, "year", lines[0]["step"])
	assert.Equal(t, "Grab and extract gdx files", lines[0]["msg"])
	assert.Equal(t, float64(2014), lines[0]["year"])

	assert.Equal(t, "filelist", lines[1]["step"])
	assert.Equal(t, "2014-01-01", lines[1]["start"])
	assert.Equal(t, "2014-01-31", lines[1]["end"])
	assert.Equal(t, float64(3), lines[1]["files"])
	assert.NotContains(t, lines[1], "year")
}

func TestNewDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
