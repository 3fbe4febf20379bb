// Package anthropic implements the normalized provider contract for
// Anthropic's Messages API.
package anthropic

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"omnigate/internal/utils"
	"omnigate/providers/ai"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"
	modelsEndpoint   = "/models"

	// anthropicVersion is the required anthropic-version header value.
	// Anthropic uses this to version-lock response formats independently of
	// the URL.
	anthropicVersion = "2023-06-01"

	vendorName = "anthropic"

	catalogTimeout = 10 * time.Second
)

// fallbackModels is the hardcoded minimum catalog used when the models
// endpoint has never been reachable.
var fallbackModels = []string{
	"claude-sonnet-4-20250514",
	"claude-3-7-sonnet-20250219",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
}

// AnthropicProvider implements [ai.Provider] and [ai.StreamProvider] for
// Anthropic's Messages API. Use [New] to construct a ready-to-use instance.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client

	catalogMu    sync.Mutex
	cachedModels []ai.ModelDescriptor
}

// New returns an AnthropicProvider initialized from environment variables.
// It reads ANTHROPIC_API_KEY for authentication and ANTHROPIC_API_BASE_URL
// for the endpoint base.
func New() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &AnthropicProvider{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Vendor implements ai.Provider.
func (p *AnthropicProvider) Vendor() string { return vendorName }

// WithAPIKey sets the API key and returns the provider so calls can be chained.
func (p *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL; use this for proxies or test servers.
func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHTTPClient replaces the default http.Client used for API calls.
func (p *AnthropicProvider) WithHTTPClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// buildHeaders returns the vendor auth headers. Anthropic authenticates via
// x-api-key rather than a bearer token, and requires anthropic-version.
func (p *AnthropicProvider) buildHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: p.apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}
}

// ListModels returns the vendor catalog, preferring the live endpoint and
// falling back to the last good cached list or the hardcoded minimum.
func (p *AnthropicProvider) ListModels(ctx context.Context) []ai.ModelDescriptor {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	if p.apiKey != "" {
		catalog, err := utils.DoGetJSON[modelsResponse](ctx, p.client, p.baseURL+modelsEndpoint, "", p.buildHeaders()...)
		if err == nil && len(catalog.Data) > 0 {
			descriptors := make([]ai.ModelDescriptor, 0, len(catalog.Data))
			for _, entry := range catalog.Data {
				descriptors = append(descriptors, ai.ModelDescriptor{
					Vendor:      vendorName,
					ID:          entry.ID,
					DisplayName: entry.DisplayName,
				})
			}
			p.catalogMu.Lock()
			p.cachedModels = descriptors
			p.catalogMu.Unlock()
			return descriptors
		}
	}

	p.catalogMu.Lock()
	cached := p.cachedModels
	p.catalogMu.Unlock()
	if len(cached) > 0 {
		return cached
	}

	descriptors := make([]ai.ModelDescriptor, 0, len(fallbackModels))
	for _, id := range fallbackModels {
		descriptors = append(descriptors, ai.ModelDescriptor{Vendor: vendorName, ID: id})
	}
	return descriptors
}

// Complete implements the non-streaming path.
func (p *AnthropicProvider) Complete(ctx context.Context, request ai.CompletionRequest) (*ai.NormalizedResponse, error) {
	if p.apiKey == "" {
		return ai.AuthErrorResponse(vendorName, request.Model, "ANTHROPIC_API_KEY is not set"), nil
	}

	start := time.Now()

	wireRequest := requestToAnthropic(request)
	response, err := utils.DoPostJSON[messagesResponse](ctx, p.client, p.baseURL+messagesEndpoint, "", wireRequest, p.buildHeaders()...)
	if err != nil {
		if details := ai.ClassifyVendorError(err); details.Kind == ai.ErrorKindAuth {
			return ai.AuthErrorResponse(vendorName, request.Model, details.Message), nil
		}
		return nil, err
	}

	return responseToNormalized(response, request, time.Since(start)), nil
}
