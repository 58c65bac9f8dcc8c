package utils

import (
	"testing"

	"capsulecheck/classifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgumentList(t *testing.T) {
	args := ParseArgumentList([]string{
		"--debug", "scan", "--folder=/steam/appcache/librarycache",
		"--workers", "4", "--force", "--match-threshold=0.7",
	})

	assert.Equal(t, map[string]string{
		"command":         "scan",
		"debug":           "true",
		"folder":          "/steam/appcache/librarycache",
		"workers":         "4",
		"force":           "true",
		"match-threshold": "0.7",
	}, args)

	none := ParseArgumentList([]string{"--debug"})
	_, hasCommand := none["command"]
	assert.False(t, hasCommand)

	unknown := ParseArgumentList([]string{"search", "--image=x.jpg"})
	_, hasCommand = unknown["command"]
	assert.False(t, hasCommand)
}

func TestIsFlagSet(t *testing.T) {
	args := map[string]string{"force": "true", "debug": "false", "steam": "yes"}
	assert.True(t, IsFlagSet(args, "force"))
	assert.False(t, IsFlagSet(args, "debug"))
	assert.True(t, IsFlagSet(args, "steam"))
	assert.False(t, IsFlagSet(args, "only-flagged"))
}

func TestParseThresholdAndWorkers(t *testing.T) {
	v, err := ParseThreshold("800")
	require.NoError(t, err)
	assert.Equal(t, 800.0, v)

	_, err = ParseThreshold("-1")
	assert.Error(t, err)
	_, err = ParseThreshold("abc")
	assert.Error(t, err)

	n, err := ParseWorkers("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = ParseWorkers("0")
	assert.Error(t, err)
}

func TestBuildConfig(t *testing.T) {
	cfg, err := BuildConfig(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, classifier.DefaultConfig(), cfg)

	cfg, err = BuildConfig(map[string]string{
		"blur-threshold":  "100",
		"match-threshold": "0.8",
		"resample-factor": "1.5",
		"size-hint":       "460X215",
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.BlurThreshold)
	assert.Equal(t, 0.8, cfg.MatchThreshold)
	assert.Equal(t, 1.5, cfg.ResampleTightenFactor)
	assert.Equal(t, "460x215", cfg.SizeHintTag)

	_, err = BuildConfig(map[string]string{"match-threshold": "x"})
	assert.ErrorContains(t, err, "--match-threshold")

	cfg, err = BuildConfig(map[string]string{"size-hint": " 1X1 "})
	require.NoError(t, err, "non-canonical sizes only fail when resampling is needed")
	assert.Equal(t, "1x1", cfg.SizeHintTag)

	_, err = BuildConfig(map[string]string{"size-hint": "portrait"})
	assert.ErrorContains(t, err, "--size-hint")

	_, err = BuildConfig(map[string]string{"resample-factor": "0.5"})
	assert.Error(t, err)
}

func TestParseDistance(t *testing.T) {
	d, err := ParseDistance(" 0 ")
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	d, err = ParseDistance("10")
	require.NoError(t, err)
	assert.Equal(t, 10, d)

	for _, bad := range []string{"", "-1", "two"} {
		_, err := ParseDistance(bad)
		assert.Error(t, err, bad)
	}
}
