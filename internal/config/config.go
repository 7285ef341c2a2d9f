// Package config loads aifbin-recall's runtime configuration: code defaults,
// overlaid by a YAML file, overlaid by environment variables (§A ambient
// stack), matching the teacher's config layering in internal/config/config.go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Search   SearchConfig   `yaml:"search"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Server   ServerConfig   `yaml:"server"`
}

// StoreConfig configures the persistent store.
type StoreConfig struct {
	// Path is the database file location. "~" expands to the home directory.
	Path string `yaml:"path"`
}

// SearchConfig configures SearchEngine defaults (§4.5).
type SearchConfig struct {
	DefaultLimit        int     `yaml:"default_limit"`
	DefaultHybridWeight float64 `yaml:"default_hybrid_weight"`
}

// EmbedderConfig selects and configures the Embedder binding (§4.4).
type EmbedderConfig struct {
	// Provider selects the Embedder implementation: "stub" or "server".
	Provider string `yaml:"provider"`
	// Host is the embedding server's base URL, used when Provider is "server".
	Host string `yaml:"host"`
	// Model is the model name sent to the embedding server.
	Model string `yaml:"model"`
	// CacheSize bounds the LRU wrapper's entry count; <= 0 disables caching.
	CacheSize int `yaml:"cache_size"`
}

// ServerConfig configures the HTTP transport (§6.3).
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration before any file or environment
// overlay is applied.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "~/.aifbin-recall/index.db",
		},
		Search: SearchConfig{
			DefaultLimit:        10,
			DefaultHybridWeight: 0.7,
		},
		Embedder: EmbedderConfig{
			Provider:  "stub",
			Host:      "http://localhost:11434",
			Model:     "nomic-embed-text",
			CacheSize: 1000,
		},
		Server: ServerConfig{
			Addr:     ":8089",
			LogLevel: "info",
		},
	}
}

// DefaultConfigPath is where Load looks for a config file when none is
// given explicitly.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".aifbin-recall", "config.yaml")
	}
	return filepath.Join(home, ".aifbin-recall", "config.yaml")
}

// Load builds a Config by layering: code defaults, then path (if it
// exists — a missing file is not an error), then environment variables.
// An empty path uses DefaultConfigPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath()
	}
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides lets AIFBIN_RECALL_* environment variables win over
// both the code defaults and the config file, mirroring the teacher's
// AMANMCP_*-prefixed override scheme.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AIFBIN_RECALL_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("AIFBIN_RECALL_EMBEDDER_PROVIDER"); v != "" {
		c.Embedder.Provider = v
	}
	if v := os.Getenv("AIFBIN_RECALL_EMBEDDER_HOST"); v != "" {
		c.Embedder.Host = v
	}
	if v := os.Getenv("AIFBIN_RECALL_EMBEDDER_MODEL"); v != "" {
		c.Embedder.Model = v
	}
	if v := os.Getenv("AIFBIN_RECALL_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AIFBIN_RECALL_SEARCH_HYBRID_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.DefaultHybridWeight = f
		}
	}
	if v := os.Getenv("AIFBIN_RECALL_SEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.DefaultLimit = n
		}
	}
}

// WriteYAML serializes c to path, creating parent directories as needed.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
