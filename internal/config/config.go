// Package config defines the folio.yaml configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level folio configuration file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Contact ContactConfig `yaml:"contact"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// AuthConfig controls session token settings. The secret has no default:
// an unset secret is a fatal startup error.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// StorageConfig selects the persistence variant.
//
// Driver "sqlite" (default) and "postgres" use the relational store;
// "file" uses flat JSON files, in which case project reordering and
// customization writes are unavailable.
type StorageConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`      // postgres only
	DataDir string `yaml:"data_dir"` // sqlite and file
}

// ContactConfig controls the contact-form endpoint.
type ContactConfig struct {
	WebhookURL    string `yaml:"webhook_url"`
	MinFillMs     int    `yaml:"min_fill_ms"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"*"},
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Contact: ContactConfig{
			MinFillMs:     3000,
			RatePerMinute: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML configuration file, layering it over the
// defaults. A missing file is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ShutdownTimeoutDuration parses the configured shutdown timeout, falling
// back to 30 seconds on an empty or malformed value.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// JWTExpiryDuration parses the configured token lifetime, falling back to
// 24 hours on an empty or malformed value.
func (c AuthConfig) JWTExpiryDuration() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiry)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
