package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API     APIConfig     `yaml:"api"`
	Chat    ChatConfig    `yaml:"chat"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig points the client at the backend
type APIConfig struct {
	BaseURL        string `yaml:"baseURL" env:"HAVEN_API_URL"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"HAVEN_TIMEOUT_SECONDS"` // 0 = client default (60s)
}

// ChatConfig holds chat screen behaviour
type ChatConfig struct {
	Welcome   string `yaml:"welcome" env:"HAVEN_WELCOME"`
	RateLimit int    `yaml:"rateLimit" env:"HAVEN_RATE_LIMIT"` // Max messages per minute (0 = disabled)
}

// SessionConfig holds where tokens are kept between runs
type SessionConfig struct {
	DBPath    string `yaml:"dbPath" env:"HAVEN_SESSION_DB"`
	Ephemeral bool   `yaml:"ephemeral" env:"HAVEN_EPHEMERAL"`          // Keep tokens in memory only
	IdleHours int    `yaml:"idleHours" env:"HAVEN_SESSION_IDLE_HOURS"` // Stored tokens unused for this long are dropped (0 = never)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"HAVEN_LOG_LEVEL"` // debug, info, warn, error (default: info)
	File  string `yaml:"file" env:"HAVEN_LOG_FILE"`   // Written while the chat screen owns the terminal
}

// DefaultWelcome seeds every new chat
const DefaultWelcome = "Welcome to Haven AI. I'm your elite real estate concierge. Are you looking to Buy, Rent, or Sell today?"

func Default() *Config {
	dir := configDir()
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:5016",
			TimeoutSeconds: 60,
		},
		Chat: ChatConfig{
			Welcome:   DefaultWelcome,
			RateLimit: 0,
		},
		Session: SessionConfig{
			DBPath:    filepath.Join(dir, "session.db"),
			IdleHours: 24,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "haven.log"),
		},
	}
}

// Timeout returns the API timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// IdleTimeout returns how long stored tokens stay valid without use (0 = forever)
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleHours) * time.Hour
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".haven")
}

// Path returns the config file location
func Path() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Load reads defaults, then the config file (if present), then .env and the
// environment, each layer overriding the previous one.
func Load() (*Config, error) {
	return LoadFrom(Path(), ".env")
}

// LoadFrom is Load with explicit file locations. A missing file is skipped.
func LoadFrom(configPath, dotenvPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if dotenvPath != "" {
		// Existing environment variables win over .env entries
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// ValidationResult holds the result of config validation
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

// Validate checks the configuration for required fields and common issues
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid api.baseURL %q: expected e.g. http://localhost:5016", c.API.BaseURL))
	} else if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		result.Warnings = append(result.Warnings, "api.baseURL uses plain http for a remote host - tokens will be sent unencrypted")
	}

	if c.API.TimeoutSeconds < 0 {
		result.Errors = append(result.Errors, "api.timeoutSeconds must not be negative")
	}

	if c.Chat.RateLimit < 0 {
		result.Errors = append(result.Errors, "chat.rateLimit must not be negative")
	} else if c.Chat.RateLimit > 100 {
		result.Warnings = append(result.Warnings, "Rate limit > 100 msg/min - the backend quota will run out quickly")
	}

	if !c.Session.Ephemeral && c.Session.DBPath == "" {
		result.Errors = append(result.Errors, "session.dbPath is required unless session.ephemeral is set")
	}

	if c.Session.IdleHours < 0 {
		result.Errors = append(result.Errors, "session.idleHours must not be negative")
	}

	return result
}

// Save writes cfg as YAML to path, creating its directory
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
