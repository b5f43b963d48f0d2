// Package config provides configuration management for the engine server.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultListen is the bind address used when server.listen is unset.
	defaultListen = ":8000"
	// defaultStateFile is used when storage.state_file is unset.
	defaultStateFile = "state.json"
	// defaultRequestTimeout bounds a single HTTP request.
	defaultRequestTimeout = "30s"
	// defaultShutdownGrace bounds the drain window on SIGTERM.
	defaultShutdownGrace = "10s"
	// defaultNotifyTimeout bounds one webhook delivery attempt.
	defaultNotifyTimeout = "5s"
)

// Config represents the complete server configuration. Trading parameters are
// not configured here; they arrive through the settings endpoint and live in
// the persisted state.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Journal     JournalConfig     `yaml:"journal"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// ServerConfig defines the HTTP listener settings.
type ServerConfig struct {
	Listen         string `yaml:"listen"`
	RequestTimeout string `yaml:"request_timeout"`
	ShutdownGrace  string `yaml:"shutdown_grace"`
}

// StorageConfig defines where the state snapshot is persisted.
type StorageConfig struct {
	StateFile string `yaml:"state_file"`
}

// JournalConfig defines the closed-session journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig defines the optional alert webhook. An empty URL disables it.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Timeout    string `yaml:"timeout"`
}

// Default returns the configuration used when no file is present. The engine
// must come up with zero setup: local state file, default port, no journal,
// no webhook.
func Default() *Config {
	c := &Config{}
	c.normalize()
	return c
}

// Load reads and parses the configuration file from the specified path. A
// missing file is not an error; the defaults are returned so the server can
// boot bare, mirroring how the state store treats a missing snapshot.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[CONFIG] %s not found, using defaults", configPath)
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	switch c.Environment.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of debug|info|warn|error, got %q", c.Environment.LogLevel)
	}

	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
		return fmt.Errorf("server.request_timeout invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownGrace); err != nil {
		return fmt.Errorf("server.shutdown_grace invalid: %w", err)
	}

	if c.Storage.StateFile == "" {
		return fmt.Errorf("storage.state_file is required")
	}

	if _, err := time.ParseDuration(c.Notify.Timeout); err != nil {
		return fmt.Errorf("notify.timeout invalid: %w", err)
	}

	return nil
}

// GetRequestTimeout returns the configured per-request timeout duration.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 30 * time.Second // default
	}
	return d
}

// GetShutdownGrace returns the configured shutdown drain window.
func (c *Config) GetShutdownGrace() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownGrace)
	if err != nil {
		return 10 * time.Second // default
	}
	return d
}

// GetNotifyTimeout returns the configured webhook delivery timeout.
func (c *Config) GetNotifyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Notify.Timeout)
	if err != nil {
		return 5 * time.Second // default
	}
	return d
}

// JournalEnabled reports whether a session journal path is configured.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Path != ""
}

// NotifyEnabled reports whether an alert webhook is configured.
func (c *Config) NotifyEnabled() bool {
	return c.Notify.WebhookURL != ""
}

// normalize fills unset fields with defaults before validation.
func (c *Config) normalize() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Server.ShutdownGrace == "" {
		c.Server.ShutdownGrace = defaultShutdownGrace
	}
	if c.Storage.StateFile == "" {
		c.Storage.StateFile = defaultStateFile
	}
	if c.Notify.Timeout == "" {
		c.Notify.Timeout = defaultNotifyTimeout
	}
}
