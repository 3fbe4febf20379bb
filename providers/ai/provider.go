package ai

import (
	"context"
	"net/http"
)

// Provider is the core interface every vendor adapter must satisfy. It covers
// catalog listing, non-streaming dispatch, and construction-time configuration.
// Use [StreamProvider] in addition when the vendor supports (or simulates)
// incremental delivery.
type Provider interface {
	// Vendor returns the adapter's vendor name ("openai", "anthropic", ...).
	Vendor() string

	// ListModels returns the vendor's known models. It never blocks
	// indefinitely: catalog fetches run under a bounded timeout, and on
	// failure the last good cached list (or a hardcoded minimum list) is
	// returned instead of an error.
	ListModels(ctx context.Context) []ModelDescriptor

	// Complete sends a normalized request and returns the completed response.
	// Vendor authentication failures are reported through ErrorDetails with
	// kind "auth_error" rather than crashing the adapter; transport and
	// decode failures are returned as an error.
	Complete(ctx context.Context, request CompletionRequest) (*NormalizedResponse, error)

	// WithAPIKey sets the credential used for authenticating vendor requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for vendor requests.
	WithBaseURL(baseURL string) Provider

	// WithHTTPClient sets the HTTP client used for outbound requests.
	WithHTTPClient(httpClient *http.Client) Provider
}

// StreamProvider is implemented by adapters that can deliver a turn as an
// incremental FrameStream. Callers detect support via type assertion:
// provider.(StreamProvider). Pre-stream errors (auth, bad request, network)
// are returned as a normal error; once the stream has started, failures
// surface as a terminal error frame so partial content is never lost.
//
// Incremental delivery is vendor-dependent: an adapter may satisfy this
// interface by fetching the full response and re-chunking it (see
// NewSimulatedStream). The frame-by-frame contract is identical either way.
type StreamProvider interface {
	Provider

	// StreamComplete sends a normalized request and returns a FrameStream
	// yielding strictly incremental content deltas followed by exactly one
	// terminal frame.
	StreamComplete(ctx context.Context, request CompletionRequest) (*FrameStream, error)
}
