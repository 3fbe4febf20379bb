package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GATEWAY_ADDR", "")

	path := writeConfigFile(t, `
providers:
  openai:
    api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Breaker.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("expected default failure threshold, got %d", cfg.Breaker.FailureThreshold)
	}
	if cfg.Stream.WatchdogSeconds != DefaultWatchdogSeconds {
		t.Errorf("expected default watchdog, got %d", cfg.Stream.WatchdogSeconds)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("GATEWAY_ADDR", ":9999")

	path := writeConfigFile(t, `
server:
  addr: ":8080"
providers:
  openai:
    api_key: sk-from-file
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-from-env" {
		t.Errorf("environment did not win over file: %q", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("GATEWAY_ADDR override ignored: %q", cfg.Server.Addr)
	}
}

func TestValidateRejectsNoCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	path := writeConfigFile(t, `
server:
  addr: ":8080"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error when no vendor credential is configured")
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	if cfg.Watchdog().Seconds() != float64(DefaultWatchdogSeconds) {
		t.Errorf("unexpected watchdog %v", cfg.Watchdog())
	}
	if cfg.Cooldown().Seconds() != float64(DefaultCooldownSeconds) {
		t.Errorf("unexpected cooldown %v", cfg.Cooldown())
	}
}
