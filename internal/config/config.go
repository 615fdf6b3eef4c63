// Package config loads server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides.
const (
	EnvCacheDir = "PATTERNS_MCP_CACHE_DIR"
	EnvLogLevel = "PATTERNS_MCP_LOG_LEVEL"
)

// SourceConfig describes one upstream content source.
type SourceConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	FeedURL string `yaml:"feed_url"`
	Enabled bool   `yaml:"enabled"`
}

// Config is the full server configuration.
type Config struct {
	CacheDir string `yaml:"cache_dir"`
	LogLevel string `yaml:"log_level"`

	// TTLs in seconds. Zero falls back to defaults.
	FeedTTLSeconds   int64 `yaml:"feed_ttl_seconds"`
	IntentTTLSeconds int64 `yaml:"intent_ttl_seconds"`
	SweepSeconds     int64 `yaml:"sweep_seconds"`

	Sources []SourceConfig `yaml:"sources"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		CacheDir:         defaultCacheDir(),
		LogLevel:         "info",
		FeedTTLSeconds:   int64((time.Hour).Seconds()),
		IntentTTLSeconds: int64((15 * time.Minute).Seconds()),
		SweepSeconds:     int64((5 * time.Minute).Seconds()),
		Sources: []SourceConfig{
			{ID: "sundell", Name: "Swift by Sundell", FeedURL: "https://swiftbysundell.com/rss", Enabled: true},
			{ID: "vanderlee", Name: "SwiftLee", FeedURL: "https://www.avanderlee.com/feed/", Enabled: true},
		},
	}
}

// Load reads configuration from path, falling back to defaults when path is
// empty, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir cannot be empty")
	}
	if c.FeedTTLSeconds < 0 || c.IntentTTLSeconds < 0 || c.SweepSeconds < 0 {
		return fmt.Errorf("TTLs cannot be negative")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for _, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("source with name %q has no id", src.Name)
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
		if src.Enabled && src.FeedURL == "" {
			return fmt.Errorf("enabled source %q has no feed_url", src.ID)
		}
	}
	return nil
}

// EnabledSources returns only the enabled source configs.
func (c *Config) EnabledSources() []SourceConfig {
	var enabled []SourceConfig
	for _, src := range c.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

// FeedTTL returns the feed cache TTL as a duration.
func (c *Config) FeedTTL() time.Duration {
	return time.Duration(c.FeedTTLSeconds) * time.Second
}

// IntentTTL returns the intent cache TTL as a duration.
func (c *Config) IntentTTL() time.Duration {
	return time.Duration(c.IntentTTLSeconds) * time.Second
}

// SweepInterval returns the expiry sweep period as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepSeconds) * time.Second
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "patterns-mcp")
	}
	return filepath.Join(home, ".patterns-mcp", "cache")
}
