// Package config loads crosstalk configuration from defaults, an
// optional YAML file, and environment overrides, in that precedence
// order (env wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the hub and its collaborators.
type Config struct {
	// DataDir is where the hub database (and the vector index, when
	// embeddings are enabled) live.
	DataDir string `yaml:"data_dir"`

	// Identity overrides. Empty fields are derived at startup.
	SessionID   string `yaml:"session_id"`
	Platform    string `yaml:"platform"`
	DisplayName string `yaml:"display_name"`
	NodeID      string `yaml:"node_id"`

	// Embedding backend for semantic search over shared context.
	// Provider "" disables semantic search entirely.
	Embed EmbedConfig `yaml:"embed"`
}

// EmbedConfig selects and configures the embedding provider.
type EmbedConfig struct {
	Provider string `yaml:"provider"` // "ollama" | "openai" | ""
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".crosstalk"),
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".crosstalk", "config.yaml")
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (missing file is fine), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// No file is the common case; defaults + env apply.
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setIfPresent(&cfg.DataDir, "CROSSTALK_DATA_DIR")
	setIfPresent(&cfg.SessionID, "CROSSTALK_SESSION_ID")
	setIfPresent(&cfg.Platform, "CROSSTALK_PLATFORM")
	setIfPresent(&cfg.DisplayName, "CROSSTALK_DISPLAY_NAME")
	setIfPresent(&cfg.NodeID, "CROSSTALK_NODE_ID")
	setIfPresent(&cfg.Embed.Provider, "CROSSTALK_EMBED_PROVIDER")
	setIfPresent(&cfg.Embed.Model, "CROSSTALK_EMBED_MODEL")
	setIfPresent(&cfg.Embed.BaseURL, "CROSSTALK_EMBED_URL")
	setIfPresent(&cfg.Embed.APIKey, "OPENAI_API_KEY")
}

func setIfPresent(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
