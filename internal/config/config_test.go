package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 200, cfg.Crawl.MaxSteps)
	assert.Equal(t, 3, cfg.Crawl.MaxDepth)
	assert.Equal(t, 0.9, cfg.Match.FastPathThreshold)
	assert.Equal(t, 0.7, cfg.Match.MatchedThreshold)
	assert.Equal(t, 0.5, cfg.Match.ReviewThreshold)
	assert.Equal(t, 5, cfg.Match.ShortlistLimit)
	assert.Equal(t, "v1", cfg.Pipeline.Version)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.ClassifyModel)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REGISTRY_CRAWL_MAX_STEPS", "50")
	t.Setenv("REGISTRY_STORE_DRIVER", "sqlite")
	t.Setenv("REGISTRY_MATCH_MATCHED_THRESHOLD", "0.8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Crawl.MaxSteps)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 0.8, cfg.Match.MatchedThreshold)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "shout", Format: "json"}))
}
