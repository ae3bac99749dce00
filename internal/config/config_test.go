package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: dash-test
backend:
  rest_url: http://localhost:9100/api/v1
  ws_url: ws://localhost:9100/ws
  timeout: 10s
pollers:
  analysis:
    initial_delay: 500ms
    max_delay: 4s
    multiplier: 2
    max_attempts: 10
limits:
  news: 25
logging:
  level: debug
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if got := cfg.Instance.ID; got != "dash-test" {
		t.Errorf("Instance.ID = %q, want %q", got, "dash-test")
	}
	if got := cfg.Backend.Timeout; got != 10*time.Second {
		t.Errorf("Backend.Timeout = %v, want 10s", got)
	}
	if got := cfg.Pollers.Analysis.InitialDelay; got != 500*time.Millisecond {
		t.Errorf("Analysis.InitialDelay = %v, want 500ms", got)
	}
	if got := cfg.Pollers.Analysis.MaxAttempts; got != 10 {
		t.Errorf("Analysis.MaxAttempts = %d, want 10", got)
	}

	// Defaults fill unset fields.
	if got := cfg.Limits.News; got != 25 {
		t.Errorf("Limits.News = %d, want 25", got)
	}
	if got := cfg.Limits.RecentSearches; got != DefaultSearchesCap {
		t.Errorf("Limits.RecentSearches = %d, want default %d", got, DefaultSearchesCap)
	}
	if got := cfg.Pollers.Quotes.Multiplier; got != DefaultMultiplier {
		t.Errorf("Quotes.Multiplier = %v, want default %v", got, DefaultMultiplier)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DASH_TOKEN", "secret-token")

	path := writeConfig(t, `
instance:
  id: dash-env
backend:
  token: ${DASH_TOKEN}
`)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if got := cfg.Backend.Token; got != "secret-token" {
		t.Errorf("Backend.Token = %q, want %q", got, "secret-token")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DashboardConfig)
	}{
		{"missing instance id", func(c *DashboardConfig) { c.Instance.ID = "" }},
		{"bad multiplier", func(c *DashboardConfig) { c.Pollers.Quotes.Multiplier = 1 }},
		{"max below initial", func(c *DashboardConfig) { c.Pollers.Analysis.MaxDelay = time.Millisecond }},
		{"negative attempts", func(c *DashboardConfig) { c.Pollers.Overview.MaxAttempts = -1 }},
		{"zero news cap", func(c *DashboardConfig) { c.Limits.News = -1 }},
		{"bad log level", func(c *DashboardConfig) { c.Logging.Level = "verbose" }},
		{"negative rate limit", func(c *DashboardConfig) { c.Backend.RateLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("dash-test")
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default("dash-test").Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() = nil error for missing file")
	}
}
