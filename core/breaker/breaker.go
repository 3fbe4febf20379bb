// Package breaker wraps a provider adapter with a circuit breaker so a
// misbehaving vendor fails fast instead of tying up every request.
package breaker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"omnigate/providers/ai"
	"omnigate/providers/observability"
)

// ErrCircuitOpen is returned when the breaker rejects a call without invoking
// the vendor.
var ErrCircuitOpen = errors.New("circuit open")

// FallbackFunc translates a rejected or failed call into a synthetic response
// so callers can keep a uniform response shape. Returning nil forwards the
// original error instead.
type FallbackFunc func(request ai.CompletionRequest, err error) *ai.NormalizedResponse

// Settings tunes one Breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold uint32
	// Cooldown is how long the circuit stays open before a single trial call
	// is allowed through.
	Cooldown time.Duration
}

// Option configures optional Breaker behavior.
type Option func(*Breaker)

// WithFallback installs a fallback producer for failed Complete calls.
func WithFallback(fallback FallbackFunc) Option {
	return func(b *Breaker) { b.fallback = fallback }
}

// WithMetrics records breaker state transitions and rejections.
func WithMetrics(metrics observability.Metrics) Option {
	return func(b *Breaker) { b.metrics = metrics }
}

// Breaker decorates an [ai.StreamProvider]. Complete is guarded end-to-end;
// StreamComplete guards only the connection step, since failures after SSE
// delivery has started surface as terminal frames rather than errors and a
// half-delivered stream is not a signal the vendor is down.
//
// Each operation gets its own state machine so a broken streaming path does
// not block non-streaming traffic.
type Breaker struct {
	provider ai.StreamProvider
	fallback FallbackFunc
	metrics  observability.Metrics

	complete *gobreaker.CircuitBreaker[*ai.NormalizedResponse]
	stream   *gobreaker.CircuitBreaker[*ai.FrameStream]
}

// New wraps provider. Zero-value settings fields fall back to 3 failures and
// a 30 second cooldown.
func New(provider ai.StreamProvider, settings Settings, opts ...Option) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}

	b := &Breaker{
		provider: provider,
		metrics:  observability.NewNoop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.complete = gobreaker.NewCircuitBreaker[*ai.NormalizedResponse](b.breakerSettings(provider.Vendor(), "complete", settings))
	b.stream = gobreaker.NewCircuitBreaker[*ai.FrameStream](b.breakerSettings(provider.Vendor(), "stream", settings))
	return b
}

func (b *Breaker) breakerSettings(vendor, operation string, settings Settings) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        vendor + "/" + operation,
		MaxRequests: 1, // one trial call in half-open
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		// A caller hanging up is not a vendor failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				b.metrics.Counter(observability.MetricBreakerTrips).Add(context.Background(), 1,
					observability.String(observability.AttrVendor, vendor),
					observability.String(observability.AttrOperation, operation))
			}
		},
	}
}

// Vendor implements ai.Provider.
func (b *Breaker) Vendor() string { return b.provider.Vendor() }

// ListModels passes through unguarded; the catalog path already degrades to
// cached and fallback lists on its own.
func (b *Breaker) ListModels(ctx context.Context) []ai.ModelDescriptor {
	return b.provider.ListModels(ctx)
}

// WithAPIKey implements ai.Provider by delegating to the wrapped adapter.
func (b *Breaker) WithAPIKey(apiKey string) ai.Provider {
	b.provider.WithAPIKey(apiKey)
	return b
}

// WithBaseURL implements ai.Provider by delegating to the wrapped adapter.
func (b *Breaker) WithBaseURL(baseURL string) ai.Provider {
	b.provider.WithBaseURL(baseURL)
	return b
}

// WithHTTPClient implements ai.Provider by delegating to the wrapped adapter.
func (b *Breaker) WithHTTPClient(client *http.Client) ai.Provider {
	b.provider.WithHTTPClient(client)
	return b
}

// Complete implements ai.Provider under breaker protection. When the circuit
// is open (or the vendor call fails) and a fallback is installed, the
// fallback response is returned with a nil error.
func (b *Breaker) Complete(ctx context.Context, request ai.CompletionRequest) (*ai.NormalizedResponse, error) {
	response, err := b.complete.Execute(func() (*ai.NormalizedResponse, error) {
		return b.provider.Complete(ctx, request)
	})
	if err == nil {
		return response, nil
	}

	err = b.translate(err, "complete")
	if b.fallback != nil {
		if synthetic := b.fallback(request, err); synthetic != nil {
			return synthetic, nil
		}
	}
	return nil, err
}

// StreamComplete implements ai.StreamProvider. Only the connection step runs
// under the breaker; the returned stream is consumed outside it.
func (b *Breaker) StreamComplete(ctx context.Context, request ai.CompletionRequest) (*ai.FrameStream, error) {
	stream, err := b.stream.Execute(func() (*ai.FrameStream, error) {
		return b.provider.StreamComplete(ctx, request)
	})
	if err != nil {
		return nil, b.translate(err, "stream")
	}
	return stream, nil
}

// translate maps gobreaker rejections to ErrCircuitOpen and records them.
func (b *Breaker) translate(err error, operation string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.metrics.Counter(observability.MetricBreakerRejects).Add(context.Background(), 1,
			observability.String(observability.AttrVendor, b.provider.Vendor()),
			observability.String(observability.AttrOperation, operation))
		return ErrCircuitOpen
	}
	return err
}

// ApologyFallback returns a FallbackFunc producing a synthetic assistant
// response explaining the outage, with machine-readable error details.
func ApologyFallback(vendor string) FallbackFunc {
	return func(request ai.CompletionRequest, err error) *ai.NormalizedResponse {
		kind := ai.ErrorKindProvider
		message := "The upstream provider failed to answer."
		if errors.Is(err, ErrCircuitOpen) {
			kind = ai.ErrorKindCircuitOpen
			message = "The upstream provider is temporarily unavailable. Please retry shortly."
		}
		return &ai.NormalizedResponse{
			ID:           "",
			Vendor:       vendor,
			Model:        request.Model,
			CreatedAt:    time.Now().Unix(),
			Content:      message,
			Usage:        ai.Usage{},
			FinishReason: ai.FinishError,
			ErrorDetails: &ai.ErrorDetails{Message: err.Error(), Kind: kind},
		}
	}
}
