// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the passkey server configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Passkey   passkey.Config   `yaml:"passkey"`
	Session   SessionConfig    `yaml:"session"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AllowedOrigins are the origins permitted by CORS. Defaults to the
	// passkey relying-party origins.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// UnmarshalYAML decodes the server section, accepting Go duration strings
// for the timeout fields. Fields absent from the document keep their
// current values.
func (c *ServerConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawServer struct {
		Host            string   `yaml:"host"`
		Port            int      `yaml:"port"`
		ReadTimeout     string   `yaml:"read_timeout"`
		WriteTimeout    string   `yaml:"write_timeout"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	}
	raw := rawServer{
		Host:           c.Host,
		Port:           c.Port,
		AllowedOrigins: c.AllowedOrigins,
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.Host = raw.Host
	c.Port = raw.Port
	c.AllowedOrigins = raw.AllowedOrigins

	for _, field := range []struct {
		value  string
		target *time.Duration
		name   string
	}{
		{raw.ReadTimeout, &c.ReadTimeout, "read_timeout"},
		{raw.WriteTimeout, &c.WriteTimeout, "write_timeout"},
		{raw.ShutdownTimeout, &c.ShutdownTimeout, "shutdown_timeout"},
	} {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field.name, err)
		}
		*field.target = d
	}
	return nil
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is one of text, json
	Format string `yaml:"format"`
}

// SessionConfig holds session token settings
type SessionConfig struct {
	// SigningKeyFile is a PEM file holding the token signing key.
	// ECDSA P-256, Ed25519 and RSA keys are supported.
	SigningKeyFile string `yaml:"signing_key_file"`
	// Issuer is the iss claim on minted tokens.
	Issuer string `yaml:"issuer"`
	// Audience is the aud claim on minted tokens.
	Audience []string `yaml:"audience"`
	// ExpiresIn is the token lifetime.
	ExpiresIn time.Duration `yaml:"expires_in"`
	// KeyID is published in the kid header and the JWKS document.
	KeyID string `yaml:"key_id"`
}

// UnmarshalYAML decodes the session section, accepting a Go duration
// string for expires_in. Fields absent from the document keep their
// current values.
func (c *SessionConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawSession struct {
		SigningKeyFile string   `yaml:"signing_key_file"`
		Issuer         string   `yaml:"issuer"`
		Audience       []string `yaml:"audience"`
		ExpiresIn      string   `yaml:"expires_in"`
		KeyID          string   `yaml:"key_id"`
	}
	raw := rawSession{
		SigningKeyFile: c.SigningKeyFile,
		Issuer:         c.Issuer,
		Audience:       c.Audience,
		KeyID:          c.KeyID,
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	c.SigningKeyFile = raw.SigningKeyFile
	c.Issuer = raw.Issuer
	c.Audience = raw.Audience
	c.KeyID = raw.KeyID

	if raw.ExpiresIn != "" {
		d, err := time.ParseDuration(raw.ExpiresIn)
		if err != nil {
			return fmt.Errorf("invalid expires_in: %w", err)
		}
		c.ExpiresIn = d
	}
	return nil
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is where the Prometheus scrape endpoint is mounted.
	Path string `yaml:"path"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			Issuer:    "go-passkey",
			Audience:  []string{"go-passkey"},
			ExpiresIn: time.Hour,
		},
		RateLimit: *ratelimit.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
	cfg.Passkey.SetDefaults()
	return cfg
}

// Load reads configuration from the given YAML file, applies environment
// overrides, and validates the result. An empty path loads defaults plus
// environment overrides only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies PASSKEY_* environment variable overrides
func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("PASSKEY_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("PASSKEY_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p < 65536 {
			c.Server.Port = p
		} else {
			slog.Warn("ignoring invalid PASSKEY_SERVER_PORT", "value", port)
		}
	}
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if rpid := os.Getenv("PASSKEY_RP_ID"); rpid != "" {
		c.Passkey.RPID = rpid
	}
	if name := os.Getenv("PASSKEY_RP_DISPLAY_NAME"); name != "" {
		c.Passkey.RPDisplayName = name
	}
	if origin := os.Getenv("PASSKEY_RP_ORIGIN"); origin != "" {
		c.Passkey.RPOrigins = []string{origin}
	}
	if keyFile := os.Getenv("PASSKEY_SESSION_KEY_FILE"); keyFile != "" {
		c.Session.SigningKeyFile = keyFile
	}
}

// setDefaults fills fields left empty by the file and environment
func (c *Config) setDefaults() {
	c.Passkey.SetDefaults()
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = c.Passkey.RPOrigins
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if err := c.Passkey.Validate(); err != nil {
		return fmt.Errorf("invalid passkey config: %w", err)
	}

	if c.Session.ExpiresIn < 0 {
		return fmt.Errorf("session expires_in must not be negative")
	}

	return nil
}

// LogLevel converts the configured level to a slog.Level
func (c *LoggingConfig) LogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a slog.Logger from the logging configuration
func (c *LoggingConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel()}
	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
