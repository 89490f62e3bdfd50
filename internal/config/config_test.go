package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Site.Treatments) == 0 {
		t.Error("expected treatments to be populated")
	}
	if cfg.AI.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.AI.Provider)
	}
	if cfg.AI.Delay != 15*time.Second {
		t.Errorf("expected 15s delay, got %v", cfg.AI.Delay)
	}
	if cfg.Ingest.PageDelay != 200*time.Millisecond {
		t.Errorf("expected 200ms page delay, got %v", cfg.Ingest.PageDelay)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
site:
  base_url: https://blog.example.com
  treatments: [Botox in Turkey]
ai:
  provider: openai
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.AI.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.AI.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.AI.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.AI.OllamaURL)
	}
	if cfg.Ingest.PageSize != 50 {
		t.Errorf("expected default page size 50, got %d", cfg.Ingest.PageSize)
	}
	if len(cfg.Site.LocaleMarkers) != 6 {
		t.Errorf("expected default locale markers, got %v", cfg.Site.LocaleMarkers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing base url", "site:\n  treatments: [a]\n", "site.base_url is required"},
		{"bad scheme", "site:\n  base_url: blog.example.com\n  treatments: [a]\n", "must start with http"},
		{"no treatments", "site:\n  base_url: https://b.example\n", "site.treatments"},
		{"page size", "site:\n  base_url: https://b.example\n  treatments: [a]\ningest:\n  page_size: 500\n", "page_size"},
		{"ok", "site:\n  base_url: https://b.example\n  treatments: [a]\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Site.BaseURL == "" {
		t.Error("expected base_url to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	_, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BLOGPULSE_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BLOGPULSE_TEST_KEY", "")
	os.Unsetenv("BLOGPULSE_TEST_KEY")

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := Env("BLOGPULSE_TEST_KEY"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
	if cfg.DBPath() != filepath.Join("/custom/path", "blogpulse.db") {
		t.Errorf("unexpected db path %q", cfg.DBPath())
	}
}
