// Package registry assembles the configured provider adapters and answers
// vendor lookups for the gateway.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"omnigate/internal/config"
	"omnigate/providers/ai"
	"omnigate/providers/ai/anthropic"
	"omnigate/providers/ai/gemini"
	"omnigate/providers/ai/openai"
	"omnigate/providers/ai/openrouter"
)

// ErrUnknownVendor is returned by Get for vendors that are not registered,
// either because the name is wrong or because no credential was configured.
var ErrUnknownVendor = errors.New("unknown vendor")

// defaultPriority decides which vendor serves requests that do not name one.
var defaultPriority = []string{"openai", "anthropic", "gemini", "openrouter"}

// vendorFactories constructs a fresh adapter per vendor name.
var vendorFactories = map[string]func() ai.StreamProvider{
	"openai":     func() ai.StreamProvider { return openai.New() },
	"anthropic":  func() ai.StreamProvider { return anthropic.New() },
	"gemini":     func() ai.StreamProvider { return gemini.New() },
	"openrouter": func() ai.StreamProvider { return openrouter.New() },
}

// Registry holds the adapters that were given credentials at startup. It is
// immutable after New and safe for concurrent use.
type Registry struct {
	cfg           config.ProvidersConfig
	providers     map[string]ai.StreamProvider
	defaultVendor string
}

// New builds a Registry from configuration. Vendors without an API key are
// skipped. The default vendor is the first configured one in priority order.
func New(cfg config.Config) (*Registry, error) {
	providers := make(map[string]ai.StreamProvider)

	for vendor, factory := range vendorFactories {
		vendorCfg := vendorConfig(cfg.Providers, vendor)
		if vendorCfg.APIKey == "" {
			continue
		}
		provider := factory()
		provider.WithAPIKey(vendorCfg.APIKey)
		if vendorCfg.BaseURL != "" {
			provider.WithBaseURL(vendorCfg.BaseURL)
		}
		providers[vendor] = provider
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no provider credential configured")
	}

	defaultVendor := ""
	for _, vendor := range defaultPriority {
		if _, ok := providers[vendor]; ok {
			defaultVendor = vendor
			break
		}
	}

	return &Registry{cfg: cfg.Providers, providers: providers, defaultVendor: defaultVendor}, nil
}

func vendorConfig(cfg config.ProvidersConfig, vendor string) config.ProviderConfig {
	switch vendor {
	case "openai":
		return cfg.OpenAI
	case "anthropic":
		return cfg.Anthropic
	case "gemini":
		return cfg.Gemini
	case "openrouter":
		return cfg.OpenRouter
	default:
		return config.ProviderConfig{}
	}
}

// Get returns the adapter for vendor, or ErrUnknownVendor.
func (r *Registry) Get(vendor string) (ai.StreamProvider, error) {
	provider, ok := r.providers[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVendor, vendor)
	}
	return provider, nil
}

// WithBearer returns a fresh adapter for vendor authenticated with the
// caller-supplied credential instead of the configured one. The shared
// adapter is never mutated, so concurrent requests with different bearers do
// not interfere. The vendor must still be registered; callers cannot unlock
// unconfigured vendors by bringing their own key.
func (r *Registry) WithBearer(vendor, apiKey string) (ai.StreamProvider, error) {
	if _, ok := r.providers[vendor]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVendor, vendor)
	}

	provider := vendorFactories[vendor]()
	provider.WithAPIKey(apiKey)
	if baseURL := vendorConfig(r.cfg, vendor).BaseURL; baseURL != "" {
		provider.WithBaseURL(baseURL)
	}
	return provider, nil
}

// All returns every registered adapter in a stable vendor order.
func (r *Registry) All() []ai.StreamProvider {
	vendors := make([]string, 0, len(r.providers))
	for vendor := range r.providers {
		vendors = append(vendors, vendor)
	}
	sort.Strings(vendors)

	providers := make([]ai.StreamProvider, 0, len(vendors))
	for _, vendor := range vendors {
		providers = append(providers, r.providers[vendor])
	}
	return providers
}

// DefaultVendor returns the vendor used when a request names none.
func (r *Registry) DefaultVendor() string { return r.defaultVendor }

// ListModels aggregates every registered vendor's catalog.
func (r *Registry) ListModels(ctx context.Context) []ai.ModelDescriptor {
	var models []ai.ModelDescriptor
	for _, provider := range r.All() {
		models = append(models, provider.ListModels(ctx)...)
	}
	return models
}
