package registry

import (
	"errors"
	"testing"

	"omnigate/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Providers = config.ProvidersConfig{}
	return cfg
}

func TestNewSkipsCredentiallessVendors(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.Anthropic.APIKey = "sk-ant"
	cfg.Providers.OpenRouter.APIKey = "sk-or"

	reg, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := reg.Get("anthropic"); err != nil {
		t.Errorf("anthropic should be registered: %v", err)
	}
	if _, err := reg.Get("openai"); !errors.Is(err, ErrUnknownVendor) {
		t.Errorf("expected ErrUnknownVendor for openai, got %v", err)
	}
	if got := len(reg.All()); got != 2 {
		t.Errorf("expected 2 registered vendors, got %d", got)
	}
}

func TestDefaultVendorFollowsPriority(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.Gemini.APIKey = "g-key"
	cfg.Providers.OpenRouter.APIKey = "or-key"

	reg, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := reg.DefaultVendor(); got != "gemini" {
		t.Errorf("expected gemini as default (openai and anthropic unconfigured), got %q", got)
	}

	cfg.Providers.OpenAI.APIKey = "sk-oai"
	reg, err = New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := reg.DefaultVendor(); got != "openai" {
		t.Errorf("expected openai to take default priority, got %q", got)
	}
}

func TestNewRejectsEmptyConfig(t *testing.T) {
	if _, err := New(testConfig()); err == nil {
		t.Fatal("expected error for configuration without credentials")
	}
}

func TestGetUnknownVendorName(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.OpenAI.APIKey = "sk-oai"

	reg, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := reg.Get("mistral"); !errors.Is(err, ErrUnknownVendor) {
		t.Errorf("expected ErrUnknownVendor, got %v", err)
	}
}

func TestWithBearerLeavesSharedAdapterAlone(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.OpenAI.APIKey = "sk-configured"

	reg, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	shared, _ := reg.Get("openai")
	fresh, err := reg.WithBearer("openai", "sk-caller")
	if err != nil {
		t.Fatalf("WithBearer returned error: %v", err)
	}
	if fresh == shared {
		t.Fatal("WithBearer must return a fresh adapter instance")
	}

	// Unregistered vendors stay locked even with a caller credential.
	if _, err := reg.WithBearer("gemini", "g-key"); !errors.Is(err, ErrUnknownVendor) {
		t.Errorf("expected ErrUnknownVendor for unconfigured vendor, got %v", err)
	}
}
