package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanoutWritesTextAndJSON(t *testing.T) {
	var stderr, file bytes.Buffer
	SetupLoggerWithWriters(&stderr, &file, slog.LevelDebug)
	t.Cleanup(CloseLogger)

	DebugLog("classified %s", "10_library_600x900.jpg")
	LogImageProcessed("/c/11_library_600x900.jpg", false, "cannot decode")

	assert.Contains(t, stderr.String(), "classified 10_library_600x900.jpg")
	assert.Contains(t, stderr.String(), "level=WARN")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &record))
	assert.Equal(t, "failed", record["msg"])
	assert.Equal(t, "/c/11_library_600x900.jpg", record["path"])
	assert.Equal(t, "cannot decode", record["error"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var stderr, file bytes.Buffer
	SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	t.Cleanup(CloseLogger)

	DebugLog("hidden")
	LogInfo("shown %d", 1)

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, file.String(), "shown 1")
}

func TestDebugLogWithoutSetupIsSilent(t *testing.T) {
	CloseLogger()
	assert.NotPanics(t, func() { DebugLog("nobody listens") })
	assert.Equal(t, slog.Default(), Logger())
}

func TestSetupLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capsulecheck.log")
	require.NoError(t, SetupLogger(path, slog.LevelDebug))
	t.Cleanup(CloseLogger)

	assert.FileExists(t, path)
	assert.Error(t, func() error {
		CloseLogger()
		return SetupLogger(filepath.Join(t.TempDir(), "missing", "x.log"), slog.LevelInfo)
	}())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))

	t.Setenv(LevelEnvVar, "warn")
	assert.Equal(t, slog.LevelWarn, LevelFromEnv())
}
