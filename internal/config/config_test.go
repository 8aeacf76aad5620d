package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults to load, got error: %v", err)
	}

	if cfg.Upstream.URL == "" {
		t.Error("expected a default upstream URL")
	}
	if cfg.Monitor.IntervalSec != 300 {
		t.Errorf("expected 300s default interval, got %d", cfg.Monitor.IntervalSec)
	}
	if cfg.Subscriptions.MaxPerOwner != 10 {
		t.Errorf("expected default quota of 10, got %d", cfg.Subscriptions.MaxPerOwner)
	}
	if cfg.CacheTTL() != 60*time.Second {
		t.Errorf("expected 60s cache TTL, got %s", cfg.CacheTTL())
	}
	if cfg.Notify.Enabled {
		t.Error("notifications should default to disabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
monitor:
  interval_sec: 60
subscriptions:
  max_per_owner: 5
notify:
  enabled: true
  priority: high
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MonitorInterval() != time.Minute {
		t.Errorf("expected 60s interval, got %s", cfg.MonitorInterval())
	}
	if cfg.Subscriptions.MaxPerOwner != 5 {
		t.Errorf("expected quota 5, got %d", cfg.Subscriptions.MaxPerOwner)
	}
	if !cfg.Notify.Enabled || cfg.Notify.Priority != "high" {
		t.Errorf("notify config not applied: %+v", cfg.Notify)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty upstream url", func(c *Config) { c.Upstream.URL = "" }},
		{"zero interval", func(c *Config) { c.Monitor.IntervalSec = 0 }},
		{"zero quota", func(c *Config) { c.Subscriptions.MaxPerOwner = 0 }},
		{"negative retries", func(c *Config) { c.Upstream.RetryCount = -1 }},
		{"bad priority", func(c *Config) {
			c.Notify.Enabled = true
			c.Notify.Priority = "shouty"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
