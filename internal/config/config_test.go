package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.CacheDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.FeedTTL())
	assert.Equal(t, 15*time.Minute, cfg.IntentTTL())
	assert.NotEmpty(t, cfg.EnabledSources())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache_dir: /tmp/test-cache
log_level: debug
feed_ttl_seconds: 120
sources:
  - id: sundell
    name: Swift by Sundell
    feed_url: https://swiftbysundell.com/rss
    enabled: true
  - id: disabled
    name: Off
    enabled: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-cache", cfg.CacheDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.FeedTTL())
	require.Len(t, cfg.EnabledSources(), 1)
	assert.Equal(t, "sundell", cfg.EnabledSources()[0].ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().LogLevel, cfg.LogLevel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvCacheDir, "/tmp/env-cache")
	t.Setenv(EnvLogLevel, "trace")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-cache", cfg.CacheDir)
	assert.Equal(t, "trace", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "EmptyCacheDir",
			mutate:  func(c *Config) { c.CacheDir = "" },
			wantErr: "cache_dir",
		},
		{
			name:    "NegativeTTL",
			mutate:  func(c *Config) { c.FeedTTLSeconds = -1 },
			wantErr: "negative",
		},
		{
			name: "MissingSourceID",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Name: "anon", Enabled: true, FeedURL: "https://x"})
			},
			wantErr: "no id",
		},
		{
			name: "DuplicateSourceID",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
			wantErr: "duplicate",
		},
		{
			name: "EnabledWithoutURL",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{ID: "x", Enabled: true})
			},
			wantErr: "feed_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
