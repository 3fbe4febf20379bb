package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxResponseBodySize is the maximum response body size (10 MB). Enforced via
// io.LimitReader to prevent unbounded memory allocation from rogue upstreams.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// HeaderOption is an extra request header applied on top of the defaults.
// Vendors that do not use bearer authentication (Anthropic's x-api-key,
// Gemini's x-goog-api-key) pass their credential through one of these.
type HeaderOption struct {
	Key   string
	Value string
}

// CloseWithLog closes closer and logs a warning on failure. Used in defer
// statements where the close error must not override the primary error path.
func CloseWithLog(closer io.Closer) {
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}

// DoPostJSON performs a synchronous HTTP POST with a JSON body and decodes the
// response into OutputStruct.
//
// Error handling strategy:
//   - context errors (timeout, cancellation) propagate immediately
//   - non-2xx responses return an error carrying the upstream body text
//   - decode errors include a response preview for debugging
//
// The response body is always fully consumed and closed before returning.
func DoPostJSON[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*OutputStruct, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	applyHeaders(req, apiKey, headers)

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(respBody)}
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body (status %d): %w; preview: %s",
			res.StatusCode, err, TruncateString(string(respBody), 500))
	}

	return &resStruct, nil
}

// DoGetJSON performs a synchronous HTTP GET and decodes the response into
// OutputStruct. Used for vendor catalog endpoints; follows the same error
// handling strategy as DoPostJSON.
func DoGetJSON[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, headers ...HeaderOption) (*OutputStruct, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	applyHeaders(req, apiKey, headers)

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(res.Body)

	respBody, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(respBody)}
	}

	var resStruct OutputStruct
	if err = json.Unmarshal(respBody, &resStruct); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body (status %d): %w; preview: %s",
			res.StatusCode, err, TruncateString(string(respBody), 500))
	}

	return &resStruct, nil
}

// DoPostStream performs an HTTP POST and returns the raw response with the body
// left open for SSE reading. The caller owns the body and must close it when
// done; on error paths the body is drained and closed before returning.
func DoPostStream(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	applyHeaders(req, apiKey, headers)

	response, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending stream request: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		if readErr != nil {
			return nil, &HTTPStatusError{StatusCode: response.StatusCode, Body: fmt.Sprintf("(failed to read body: %v)", readErr)}
		}
		return nil, &HTTPStatusError{StatusCode: response.StatusCode, Body: string(errorBody)}
	}

	return response, nil
}

// applyHeaders sets the default JSON content type, the optional bearer
// credential, and any vendor-specific header overrides (applied last so they
// can replace Authorization when a vendor uses a different auth scheme).
func applyHeaders(req *http.Request, apiKey string, headers []HeaderOption) {
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}
}

// HTTPStatusError reports a non-2xx upstream response. Adapters inspect
// StatusCode to classify authentication failures separately from other
// vendor-side errors.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, TruncateString(e.Body, 500))
}
