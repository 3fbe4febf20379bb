package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"omnigate/providers/ai"
)

// writeSSE is a test helper that writes an SSE data line and flushes.
func writeSSE(writer http.ResponseWriter, data string) {
	fmt.Fprintf(writer, "data: %s\n\n", data)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeSSEDone writes the [DONE] sentinel to signal end of stream.
func writeSSEDone(writer http.ResponseWriter) {
	fmt.Fprintf(writer, "data: [DONE]\n\n")
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func newStreamProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")
	return provider
}

func TestStreamComplete_ContentStreaming(t *testing.T) {
	provider := newStreamProvider(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)

		writeSSE(writer, `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"Hel"},"finish_reason":null}]}`)
		writeSSE(writer, `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"lo!"},"finish_reason":null}]}`)
		writeSSE(writer, `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)
		writeSSE(writer, `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`)
		writeSSEDone(writer)
	})

	stream, err := provider.StreamComplete(context.Background(), ai.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamComplete returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if response.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", response.Content)
	}
	if response.FinishReason != ai.FinishStop {
		t.Errorf("expected finish reason stop, got %q", response.FinishReason)
	}
	if response.Usage.TotalTokens != 6 {
		t.Errorf("expected reported usage 6, got %+v", response.Usage)
	}
	if response.Vendor != "openai" {
		t.Errorf("expected vendor openai, got %q", response.Vendor)
	}
}

func TestStreamComplete_ExactlyOneTerminalFrame(t *testing.T) {
	provider := newStreamProvider(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)
		writeSSE(writer, `{"id":"chatcmpl-2","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"partial"},"finish_reason":null}]}`)
		// Connection ends without finish_reason or [DONE].
	})

	stream, err := provider.StreamComplete(context.Background(), ai.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamComplete returned error: %v", err)
	}

	terminals := 0
	var content string
	for frame, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected iterator error: %v", err)
		}
		content += frame.ContentDelta
		if frame.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("expected exactly one terminal frame, got %d", terminals)
	}
	if content != "partial" {
		t.Errorf("partial content lost: %q", content)
	}
}

func TestStreamComplete_RepairsMalformedChunk(t *testing.T) {
	provider := newStreamProvider(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)
		// Trailing comma: invalid JSON that jsonrepair can fix.
		writeSSE(writer, `{"id":"chatcmpl-3","model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":null},]}`)
		writeSSE(writer, `{"id":"chatcmpl-3","model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`)
		writeSSEDone(writer)
	})

	stream, err := provider.StreamComplete(context.Background(), ai.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamComplete returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if response.Content != "ok" {
		t.Errorf("expected repaired chunk content 'ok', got %q", response.Content)
	}
	if response.FinishReason != ai.FinishStop {
		t.Errorf("expected stop, got %q", response.FinishReason)
	}
}

func TestStreamComplete_MissingKeyYieldsAuthTerminal(t *testing.T) {
	provider := New()
	provider.WithAPIKey("")
	provider.WithBaseURL("http://127.0.0.1:0") // must never be dialed

	stream, err := provider.StreamComplete(context.Background(), ai.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("missing key must not be an error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if response.ErrorDetails == nil || response.ErrorDetails.Kind != ai.ErrorKindAuth {
		t.Errorf("expected auth_error details, got %+v", response.ErrorDetails)
	}
	if response.FinishReason != ai.FinishError {
		t.Errorf("expected finish reason error, got %q", response.FinishReason)
	}
}
