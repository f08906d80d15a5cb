package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Task API the timer talks to
	API APIConfig `yaml:"api"`

	// Reference backend served by "tasktimer serve"
	Server ServerConfig `yaml:"server"`

	// Database settings for the backend
	Database DatabaseConfig `yaml:"database"`

	Log LogConfig `yaml:"log"`
}

type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`           // bearer token; falls back to the keyring
	RequestTimeout time.Duration `yaml:"request_timeout"` // bound on each start/pause/fetch call
	PollInterval   time.Duration `yaml:"poll_interval"`   // task list refetch period
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"` // empty disables auth
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // Path to SQLite database
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // TUI log file; the terminal is taken by the UI
}

// Dir returns ~/.config/tasktimer
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir unavailable
		return filepath.Join(".", ".config", "tasktimer")
	}
	return filepath.Join(homeDir, ".config", "tasktimer")
}

// DefaultConfigPath returns ~/.config/tasktimer/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:8420",
			RequestTimeout: 15 * time.Second,
			PollInterval:   30 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8420",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dir, "tasktimer.db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "tasktimer.log"),
		},
	}
}

// Load loads config from the given path, or returns defaults if file doesn't exist
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDefault loads from the default config path
func LoadDefault() (*Config, error) {
	return Load(DefaultConfigPath())
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.RequestTimeout < 0 {
		return errors.New("api.request_timeout must not be negative")
	}
	if c.API.PollInterval < 0 {
		return errors.New("api.poll_interval must not be negative")
	}
	return nil
}

// Save writes the config to the given path
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// May hold tokens
	return os.WriteFile(path, data, 0600)
}

// EnsureDirectories creates the directories the database and log file live in
func (c *Config) EnsureDirectories() error {
	for _, p := range []string{c.Database.Path, c.Log.File} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
	}
	return nil
}
