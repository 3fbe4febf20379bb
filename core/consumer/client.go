package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"omnigate/internal/utils"
	"omnigate/providers/ai"
)

const stopCallTimeout = 5 * time.Second

// Client talks to a running gateway: it issues completion requests and drives
// a Consumer over the streamed response.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bearer     string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBearer attaches a bearer credential to every request.
func WithBearer(token string) ClientOption {
	return func(c *Client) { c.bearer = token }
}

// NewClient returns a Client for the gateway at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete issues a non-streaming completion call.
func (c *Client) Complete(ctx context.Context, request ai.CompletionRequest) (*ai.NormalizedResponse, error) {
	request.Stream = false
	return utils.DoPostJSON[ai.NormalizedResponse](ctx, c.httpClient, c.baseURL+"/v1/chat/completions", c.bearer, request)
}

// Stream issues a streaming completion call and consumes it with a Consumer
// wired for out-of-band stops. The returned Consumer may be used to Stop the
// turn from another goroutine; the call blocks until the stream finishes.
func (c *Client) Stream(ctx context.Context, request ai.CompletionRequest, render RenderFunc) (string, Metrics, error) {
	request.Stream = true

	response, err := utils.DoPostStream(ctx, c.httpClient, c.baseURL+"/v1/chat/completions", c.bearer, request)
	if err != nil {
		return "", Metrics{}, err
	}
	defer utils.CloseWithLog(response.Body)

	streamConsumer := New(
		WithRender(render),
		WithStopFunc(func(requestID string) {
			// Best effort: the cancelled byte stream already stops delivery.
			stopCtx, cancel := context.WithTimeout(context.Background(), stopCallTimeout)
			defer cancel()
			_ = c.Stop(stopCtx, requestID)
		}),
	)
	return streamConsumer.Consume(ctx, response.Body)
}

// StreamWith runs an externally constructed Consumer, for callers that need
// the Consumer handle (to Stop mid-turn) before the call returns.
func (c *Client) StreamWith(ctx context.Context, request ai.CompletionRequest, streamConsumer *Consumer) (string, Metrics, error) {
	request.Stream = true

	response, err := utils.DoPostStream(ctx, c.httpClient, c.baseURL+"/v1/chat/completions", c.bearer, request)
	if err != nil {
		return "", Metrics{}, err
	}
	defer utils.CloseWithLog(response.Body)

	return streamConsumer.Consume(ctx, response.Body)
}

// Stop issues the out-of-band stop call for requestID.
func (c *Client) Stop(ctx context.Context, requestID string) error {
	payload := map[string]string{"request_id": requestID}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stop request: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/stop", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build stop request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return fmt.Errorf("stop call: %w", err)
	}
	defer utils.CloseWithLog(response.Body)

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("stop call returned status %d", response.StatusCode)
	}
	return nil
}
