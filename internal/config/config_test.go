package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.BaseURL != "http://localhost:5016" {
		t.Errorf("Default baseURL = %s", cfg.API.BaseURL)
	}
	if cfg.Timeout() != 60*time.Second {
		t.Errorf("Default timeout = %v, want 60s", cfg.Timeout())
	}
	if cfg.Chat.Welcome != DefaultWelcome {
		t.Errorf("Default welcome = %q", cfg.Chat.Welcome)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".haven", "session.db"); cfg.Session.DBPath != want {
		t.Errorf("Default dbPath = %s, want %s", cfg.Session.DBPath, want)
	}
	if cfg.IdleTimeout() != 24*time.Hour {
		t.Errorf("Default idle timeout = %v", cfg.IdleTimeout())
	}

	if result := cfg.Validate(); !result.IsValid() {
		t.Errorf("Default config should be valid, got %v", result.Errors)
	}
}

func TestLoadFrom_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFrom(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.API.BaseURL != Default().API.BaseURL {
		t.Errorf("expected defaults, got baseURL %s", cfg.API.BaseURL)
	}
}

func TestLoadFrom_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
api:
  baseURL: https://api.haven.example
  timeoutSeconds: 15
chat:
  rateLimit: 10
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path, "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.API.BaseURL != "https://api.haven.example" {
		t.Errorf("baseURL = %s", cfg.API.BaseURL)
	}
	if cfg.Timeout() != 15*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout())
	}
	if cfg.Chat.RateLimit != 10 {
		t.Errorf("rateLimit = %d", cfg.Chat.RateLimit)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s", cfg.Log.Level)
	}
	// Keys absent from the file keep their defaults
	if cfg.Chat.Welcome != DefaultWelcome {
		t.Errorf("welcome should keep default, got %q", cfg.Chat.Welcome)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("api: [unterminated"), 0644)

	if _, err := LoadFrom(path, ""); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("api:\n  baseURL: https://from-file.example\n"), 0644)

	t.Setenv("HAVEN_API_URL", "https://from-env.example")
	t.Setenv("HAVEN_RATE_LIMIT", "5")
	t.Setenv("HAVEN_EPHEMERAL", "true")

	cfg, err := LoadFrom(path, "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.API.BaseURL != "https://from-env.example" {
		t.Errorf("env should override file, got %s", cfg.API.BaseURL)
	}
	if cfg.Chat.RateLimit != 5 {
		t.Errorf("rateLimit = %d, want 5", cfg.Chat.RateLimit)
	}
	if !cfg.Session.Ephemeral {
		t.Error("ephemeral should be set from env")
	}
}

func TestLoadFrom_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	os.WriteFile(envPath, []byte("HAVEN_LOG_LEVEL=warn\nHAVEN_TIMEOUT_SECONDS=30\n"), 0644)

	// godotenv sets process variables; make sure they are removed afterwards
	t.Setenv("HAVEN_LOG_LEVEL", "")
	os.Unsetenv("HAVEN_LOG_LEVEL")
	t.Setenv("HAVEN_TIMEOUT_SECONDS", "")
	os.Unsetenv("HAVEN_TIMEOUT_SECONDS")

	cfg, err := LoadFrom(filepath.Join(dir, "missing.yaml"), envPath)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %s, want warn", cfg.Log.Level)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Timeout())
	}
}

func TestLoadFrom_InvalidEnv(t *testing.T) {
	t.Setenv("HAVEN_RATE_LIMIT", "lots")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("expected error for non-numeric HAVEN_RATE_LIMIT")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantError   string
		wantWarning string
	}{
		{
			name:      "empty base url",
			mutate:    func(c *Config) { c.API.BaseURL = "" },
			wantError: "api.baseURL",
		},
		{
			name:      "base url without scheme",
			mutate:    func(c *Config) { c.API.BaseURL = "localhost:5016" },
			wantError: "api.baseURL",
		},
		{
			name:        "plain http to remote host",
			mutate:      func(c *Config) { c.API.BaseURL = "http://api.haven.example" },
			wantWarning: "unencrypted",
		},
		{
			name:      "negative timeout",
			mutate:    func(c *Config) { c.API.TimeoutSeconds = -1 },
			wantError: "timeoutSeconds",
		},
		{
			name:      "negative rate limit",
			mutate:    func(c *Config) { c.Chat.RateLimit = -1 },
			wantError: "rateLimit",
		},
		{
			name:        "high rate limit",
			mutate:      func(c *Config) { c.Chat.RateLimit = 500 },
			wantWarning: "Rate limit",
		},
		{
			name:      "missing db path",
			mutate:    func(c *Config) { c.Session.DBPath = "" },
			wantError: "dbPath",
		},
		{
			name: "ephemeral without db path",
			mutate: func(c *Config) {
				c.Session.DBPath = ""
				c.Session.Ephemeral = true
			},
		},
		{
			name:      "negative idle hours",
			mutate:    func(c *Config) { c.Session.IdleHours = -2 },
			wantError: "idleHours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			result := cfg.Validate()

			if tt.wantError == "" && !result.IsValid() {
				t.Errorf("expected valid config, got errors: %v", result.Errors)
			}
			if tt.wantError != "" && !containsAny(result.Errors, tt.wantError) {
				t.Errorf("expected error containing %q, got %v", tt.wantError, result.Errors)
			}
			if tt.wantWarning != "" && !containsAny(result.Warnings, tt.wantWarning) {
				t.Errorf("expected warning containing %q, got %v", tt.wantWarning, result.Warnings)
			}
		})
	}
}

func containsAny(list []string, substr string) bool {
	for _, s := range list {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.API.BaseURL = "https://haven.example"
	cfg.Chat.RateLimit = 7
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadFrom(path, "")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.API.BaseURL != "https://haven.example" || loaded.Chat.RateLimit != 7 {
		t.Errorf("saved settings not read back: %+v", loaded)
	}
}
