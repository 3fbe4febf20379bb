// Package gemini implements the normalized provider contract for Google's
// Gemini generateContent API.
package gemini

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"omnigate/internal/utils"
	"omnigate/providers/ai"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	vendorName = "gemini"

	catalogTimeout = 10 * time.Second
)

// fallbackModels is the hardcoded minimum catalog used when the models
// endpoint has never been reachable.
var fallbackModels = []string{
	"gemini-2.0-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash",
}

// GeminiProvider implements [ai.Provider] and [ai.StreamProvider] for the
// Gemini API. Use [New] to construct a ready-to-use instance.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client

	catalogMu    sync.Mutex
	cachedModels []ai.ModelDescriptor
}

// New returns a GeminiProvider initialized from environment variables. It
// reads GEMINI_API_KEY for authentication and GEMINI_API_BASE_URL for the
// endpoint base.
func New() *GeminiProvider {
	baseURL := os.Getenv("GEMINI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &GeminiProvider{
		apiKey:  os.Getenv("GEMINI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Vendor implements ai.Provider.
func (p *GeminiProvider) Vendor() string { return vendorName }

// WithAPIKey sets the API key and returns the provider so calls can be chained.
func (p *GeminiProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL; use this for proxies or test servers.
func (p *GeminiProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHTTPClient replaces the default http.Client used for API calls.
func (p *GeminiProvider) WithHTTPClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// authHeader returns the Gemini credential header. Gemini authenticates via
// x-goog-api-key rather than a bearer token.
func (p *GeminiProvider) authHeader() utils.HeaderOption {
	return utils.HeaderOption{Key: "x-goog-api-key", Value: p.apiKey}
}

// ListModels returns the vendor catalog, preferring the live endpoint and
// falling back to the last good cached list or the hardcoded minimum.
func (p *GeminiProvider) ListModels(ctx context.Context) []ai.ModelDescriptor {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	if p.apiKey != "" {
		catalog, err := utils.DoGetJSON[modelsResponse](ctx, p.client, p.baseURL+"/models", "", p.authHeader())
		if err == nil && len(catalog.Models) > 0 {
			descriptors := make([]ai.ModelDescriptor, 0, len(catalog.Models))
			for _, entry := range catalog.Models {
				descriptors = append(descriptors, ai.ModelDescriptor{
					Vendor:      vendorName,
					ID:          strings.TrimPrefix(entry.Name, "models/"),
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
func (p *GeminiProvider) Complete(ctx context.Context, request ai.CompletionRequest) (*ai.NormalizedResponse, error) {
	if p.apiKey == "" {
		return ai.AuthErrorResponse(vendorName, request.Model, "GEMINI_API_KEY is not set"), nil
	}

	start := time.Now()

	callURL := p.baseURL + "/models/" + request.Model + ":generateContent"
	wireRequest := requestToGemini(request)
	response, err := utils.DoPostJSON[generateContentResponse](ctx, p.client, callURL, "", wireRequest, p.authHeader())
	if err != nil {
		if details := ai.ClassifyVendorError(err); details.Kind == ai.ErrorKindAuth {
			return ai.AuthErrorResponse(vendorName, request.Model, details.Message), nil
		}
		return nil, err
	}

	return responseToNormalized(response, request, time.Since(start)), nil
}
