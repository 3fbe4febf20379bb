// Package config loads gateway configuration from a YAML file with
// environment variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Stream    StreamConfig    `yaml:"stream"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ProvidersConfig catalogues the supported upstream vendors. A vendor with no
// API key (in the file or the environment) is simply not registered.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `yaml:"openai"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	Gemini     ProviderConfig `yaml:"gemini"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
}

// ProviderConfig captures authentication and routing info for one vendor.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// BreakerConfig tunes the per-vendor circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownSeconds  int `yaml:"cooldown_seconds"`
}

// StreamConfig tunes streaming delivery.
type StreamConfig struct {
	WatchdogSeconds  int `yaml:"watchdog_seconds"`
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`
}

// Defaults applied by Load for fields the file leaves unset.
const (
	DefaultAddr             = ":8080"
	DefaultFailureThreshold = 3
	DefaultCooldownSeconds  = 30
	DefaultWatchdogSeconds  = 60
	DefaultHeartbeatSeconds = 15
)

// Default returns a runnable configuration with every tunable at its default
// and credentials taken from the environment.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg
}

// Load reads YAML configuration from disk, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Breaker.FailureThreshold <= 0 {
		c.Breaker.FailureThreshold = DefaultFailureThreshold
	}
	if c.Breaker.CooldownSeconds <= 0 {
		c.Breaker.CooldownSeconds = DefaultCooldownSeconds
	}
	if c.Stream.WatchdogSeconds <= 0 {
		c.Stream.WatchdogSeconds = DefaultWatchdogSeconds
	}
	if c.Stream.HeartbeatSeconds <= 0 {
		c.Stream.HeartbeatSeconds = DefaultHeartbeatSeconds
	}
}

// applyEnvOverrides lets environment variables win over the file for
// credentials and endpoints, so keys never have to live on disk.
func (c *Config) applyEnvOverrides() {
	overrideString(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&c.Providers.OpenAI.BaseURL, "OPENAI_API_BASE_URL")
	overrideString(&c.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	overrideString(&c.Providers.Anthropic.BaseURL, "ANTHROPIC_API_BASE_URL")
	overrideString(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	overrideString(&c.Providers.Gemini.BaseURL, "GEMINI_API_BASE_URL")
	overrideString(&c.Providers.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	overrideString(&c.Providers.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	overrideString(&c.Server.Addr, "GATEWAY_ADDR")
}

func overrideString(target *string, envKey string) {
	if value := os.Getenv(envKey); value != "" {
		*target = value
	}
}

// Validate performs sanity checks on the configuration. Vendors without a
// credential are allowed (they stay unregistered), but at least one must be
// usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be at least 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.CooldownSeconds < 1 {
		return fmt.Errorf("breaker.cooldown_seconds must be at least 1, got %d", c.Breaker.CooldownSeconds)
	}
	if c.Stream.WatchdogSeconds < 1 {
		return fmt.Errorf("stream.watchdog_seconds must be at least 1, got %d", c.Stream.WatchdogSeconds)
	}

	if c.Providers.OpenAI.APIKey == "" &&
		c.Providers.Anthropic.APIKey == "" &&
		c.Providers.Gemini.APIKey == "" &&
		c.Providers.OpenRouter.APIKey == "" {
		return fmt.Errorf("no provider credential configured; set at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, OPENROUTER_API_KEY")
	}

	return nil
}

// Watchdog returns the stream inactivity timeout as a duration.
func (c Config) Watchdog() time.Duration {
	return time.Duration(c.Stream.WatchdogSeconds) * time.Second
}

// Heartbeat returns the SSE heartbeat interval as a duration.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.Stream.HeartbeatSeconds) * time.Second
}

// Cooldown returns the breaker open-state duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownSeconds) * time.Second
}
