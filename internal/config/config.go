package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigDir is the per-repository directory gitsplit keeps its state
// in, relative to the repository root.
const ConfigDir = ".gitsplit"

// Config holds all gitsplit configuration.
type Config struct {
	Oracle  OracleConfig  `yaml:"oracle"`
	Git     GitConfig     `yaml:"git"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// OracleConfig configures the intent oracle client.
type OracleConfig struct {
	APIKey  string  `yaml:"api_key"`
	BaseURL string  `yaml:"base_url"`
	Model   string  `yaml:"model"` // pins a model and disables tier escalation
	MaxCost float64 `yaml:"max_cost"`
	Timeout string  `yaml:"timeout"`
}

// GitConfig configures repository defaults.
type GitConfig struct {
	BaseBranch   string `yaml:"base_branch"` // empty means auto-detect
	BuildCommand string `yaml:"build_command"`
}

// SessionConfig configures persistence.
type SessionConfig struct {
	Store       string `yaml:"store"` // "json" or "sqlite"
	Dir         string `yaml:"dir"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool     `yaml:"debug_mode"`
	Level      string   `yaml:"level"`
	Categories []string `yaml:"categories"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Oracle: OracleConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Timeout: "120s",
		},
		Session: SessionConfig{
			Store:       "json",
			MaxAttempts: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads <workspace>/.gitsplit/config.yaml, falling back to
// defaults when the file is absent, then applies env overrides.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(workspace, ConfigDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if cfg.Session.Dir == "" {
		cfg.Session.Dir = filepath.Join(workspace, ConfigDir, "sessions")
	}
	if cfg.Session.MaxAttempts < 1 {
		cfg.Session.MaxAttempts = 5
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over the file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
	if model := os.Getenv("GITSPLIT_MODEL"); model != "" {
		c.Oracle.Model = model
	}
	if cost := os.Getenv("GITSPLIT_MAX_COST"); cost != "" {
		if v, err := strconv.ParseFloat(cost, 64); err == nil {
			c.Oracle.MaxCost = v
		}
	}
	if base := os.Getenv("GITSPLIT_BASE_BRANCH"); base != "" {
		c.Git.BaseBranch = base
	}
	if store := os.Getenv("GITSPLIT_SESSION_STORE"); store != "" {
		c.Session.Store = store
	}
	if debug := os.Getenv("GITSPLIT_DEBUG"); debug == "1" || debug == "true" {
		c.Logging.DebugMode = true
	}
}

// Save writes the config back to <workspace>/.gitsplit/config.yaml.
func (c *Config) Save(workspace string) error {
	dir := filepath.Join(workspace, ConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644)
}
