// Package openai implements the normalized provider contract for the OpenAI
// chat completions API and compatible hosts.
package openai

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
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
	modelsEndpoint          = "/models"

	vendorName = "openai"

	// catalogTimeout bounds the models-endpoint fetch so ListModels never
	// blocks indefinitely.
	catalogTimeout = 10 * time.Second
)

// fallbackModels is the hardcoded minimum catalog returned when the vendor
// models endpoint has never been reachable.
var fallbackModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
	"o3-mini",
}

// OpenAIProvider implements [ai.Provider] and [ai.StreamProvider] for the
// OpenAI chat completions API. Use [New] to construct a ready-to-use instance.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client

	catalogMu    sync.Mutex
	cachedModels []ai.ModelDescriptor
}

// New returns an OpenAIProvider initialized from environment variables. It
// reads OPENAI_API_KEY for authentication and OPENAI_API_BASE_URL for the
// endpoint base (defaulting to https://api.openai.com/v1 when unset).
func New() *OpenAIProvider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Vendor implements ai.Provider.
func (p *OpenAIProvider) Vendor() string { return vendorName }

// WithAPIKey sets the API key and returns the provider so calls can be chained.
func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL; use this for proxies, compatible
// hosts, or test servers.
func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHTTPClient replaces the default http.Client used for API calls.
func (p *OpenAIProvider) WithHTTPClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// ListModels returns the vendor catalog. The fetch runs under a bounded
// timeout; on failure the last good cached list is returned, or the hardcoded
// minimum list when no fetch has ever succeeded.
func (p *OpenAIProvider) ListModels(ctx context.Context) []ai.ModelDescriptor {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	if p.apiKey != "" {
		catalog, err := utils.DoGetJSON[modelsResponse](ctx, p.client, p.baseURL+modelsEndpoint, p.apiKey)
		if err == nil && len(catalog.Data) > 0 {
			descriptors := make([]ai.ModelDescriptor, 0, len(catalog.Data))
			for _, entry := range catalog.Data {
				descriptors = append(descriptors, ai.ModelDescriptor{Vendor: vendorName, ID: entry.ID})
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

// Complete implements the non-streaming path. Authentication failures are
// reported inside the response (kind "auth_error") instead of as an error, so
// the adapter stays usable and simply retries on the next call.
func (p *OpenAIProvider) Complete(ctx context.Context, request ai.CompletionRequest) (*ai.NormalizedResponse, error) {
	if p.apiKey == "" {
		return ai.AuthErrorResponse(vendorName, request.Model, "OPENAI_API_KEY is not set"), nil
	}

	start := time.Now()

	wireRequest := requestToChatCompletion(request)
	response, err := utils.DoPostJSON[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, wireRequest)
	if err != nil {
		if details := ai.ClassifyVendorError(err); details.Kind == ai.ErrorKindAuth {
			return ai.AuthErrorResponse(vendorName, request.Model, details.Message), nil
		}
		return nil, err
	}

	return responseToNormalized(response, request, time.Since(start)), nil
}
