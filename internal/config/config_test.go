package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.RequestTimeout != 15*time.Second || cfg.API.PollInterval != 30*time.Second {
		t.Errorf("defaults = %+v", cfg.API)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
api:
  base_url: https://tasks.example.com
  request_timeout: 5s
  poll_interval: 1m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "https://tasks.example.com" {
		t.Errorf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.API.RequestTimeout != 5*time.Second || cfg.API.PollInterval != time.Minute {
		t.Errorf("durations = %v %v", cfg.API.RequestTimeout, cfg.API.PollInterval)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	// untouched sections keep defaults
	if cfg.Server.Addr != "127.0.0.1:8420" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("api:\n  base_url: \"\"\n"), 0600)

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Errorf("Load err = %v, want base_url error", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.API.Token = "abc"
	cfg.API.RequestTimeout = 3 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.API.Token != "abc" || loaded.API.RequestTimeout != 3*time.Second {
		t.Errorf("loaded = %+v", loaded.API)
	}
}
