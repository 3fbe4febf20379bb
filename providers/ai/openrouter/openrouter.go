// Package openrouter implements the normalized provider contract for
// OpenRouter's aggregation API. The wire format is OpenAI-compatible, but
// model identifiers keep their vendor prefix (e.g. "meta-llama/llama-3-70b")
// and the API wants attribution headers alongside the bearer token.
package openrouter

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
	defaultBaseURL          = "https://openrouter.ai/api/v1"
	chatCompletionsEndpoint = "/chat/completions"
	modelsEndpoint          = "/models"

	vendorName = "openrouter"

	catalogTimeout = 10 * time.Second
)

var fallbackModels = []string{
	"openai/gpt-4o-mini",
	"anthropic/claude-3.5-sonnet",
	"meta-llama/llama-3.1-70b-instruct",
	"mistralai/mistral-large",
}

// OpenRouterProvider implements [ai.Provider] and [ai.StreamProvider].
// Streaming is simulated: the full completion is fetched and re-chunked
// locally, because upstream latency and pricing differ per routed model and
// the aggregated SSE behavior is not uniform enough to rely on.
type OpenRouterProvider struct {
	apiKey   string
	baseURL  string
	referer  string
	appTitle string
	client   *http.Client

	catalogMu    sync.Mutex
	cachedModels []ai.ModelDescriptor
}

// New returns an OpenRouterProvider initialized from environment variables:
// OPENROUTER_API_KEY, OPENROUTER_BASE_URL, and the optional attribution pair
// OPENROUTER_REFERER / OPENROUTER_APP_TITLE.
func New() *OpenRouterProvider {
	baseURL := os.Getenv("OPENROUTER_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenRouterProvider{
		apiKey:   os.Getenv("OPENROUTER_API_KEY"),
		baseURL:  baseURL,
		referer:  os.Getenv("OPENROUTER_REFERER"),
		appTitle: os.Getenv("OPENROUTER_APP_TITLE"),
		client:   &http.Client{},
	}
}

// Vendor implements ai.Provider.
func (p *OpenRouterProvider) Vendor() string { return vendorName }

// WithAPIKey sets the API key and returns the provider so calls can be chained.
func (p *OpenRouterProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL; use this for proxies or test servers.
func (p *OpenRouterProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHTTPClient replaces the default http.Client used for API calls.
func (p *OpenRouterProvider) WithHTTPClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithAttribution sets the optional HTTP-Referer and X-Title headers
// OpenRouter uses for app rankings.
func (p *OpenRouterProvider) WithAttribution(referer, appTitle string) *OpenRouterProvider {
	p.referer = referer
	p.appTitle = appTitle
	return p
}

// attributionHeaders returns the optional identification headers, skipping
// unset ones.
func (p *OpenRouterProvider) attributionHeaders() []utils.HeaderOption {
	var headers []utils.HeaderOption
	if p.referer != "" {
		headers = append(headers, utils.HeaderOption{Key: "HTTP-Referer", Value: p.referer})
	}
	if p.appTitle != "" {
		headers = append(headers, utils.HeaderOption{Key: "X-Title", Value: p.appTitle})
	}
	return headers
}

// ListModels returns the aggregated catalog, preferring the live endpoint and
// falling back to the last good cached list or the hardcoded minimum.
func (p *OpenRouterProvider) ListModels(ctx context.Context) []ai.ModelDescriptor {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	if p.apiKey != "" {
		catalog, err := utils.DoGetJSON[modelsResponse](ctx, p.client, p.baseURL+modelsEndpoint, p.apiKey, p.attributionHeaders()...)
		if err == nil && len(catalog.Data) > 0 {
			descriptors := make([]ai.ModelDescriptor, 0, len(catalog.Data))
			for _, entry := range catalog.Data {
				descriptors = append(descriptors, ai.ModelDescriptor{
					Vendor:      vendorName,
					ID:          entry.ID,
					DisplayName: entry.Name,
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
func (p *OpenRouterProvider) Complete(ctx context.Context, request ai.CompletionRequest) (*ai.NormalizedResponse, error) {
	if p.apiKey == "" {
		return ai.AuthErrorResponse(vendorName, request.Model, "OPENROUTER_API_KEY is not set"), nil
	}

	start := time.Now()

	wireRequest := requestToChatCompletion(request)
	response, err := utils.DoPostJSON[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, wireRequest, p.attributionHeaders()...)
	if err != nil {
		if details := ai.ClassifyVendorError(err); details.Kind == ai.ErrorKindAuth {
			return ai.AuthErrorResponse(vendorName, request.Model, details.Message), nil
		}
		return nil, err
	}

	return responseToNormalized(response, request, time.Since(start)), nil
}

// StreamComplete implements [ai.StreamProvider] by fetching the complete
// response and replaying it as a simulated frame stream. Cancellation during
// the replay yields an aborted terminal frame like a real stream would.
func (p *OpenRouterProvider) StreamComplete(ctx context.Context, request ai.CompletionRequest) (*ai.FrameStream, error) {
	response, err := p.Complete(ctx, request)
	if err != nil {
		return nil, err
	}
	return ai.NewSimulatedStream(ctx, response), nil
}
