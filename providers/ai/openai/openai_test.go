package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"omnigate/providers/ai"
)

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if got := request.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer credential, got %q", got)
		}

		var wireRequest chatCompletionRequest
		if err := json.NewDecoder(request.Body).Decode(&wireRequest); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(wireRequest.Messages) != 2 || wireRequest.Messages[0].Content != "You are terse." {
			t.Errorf("system message should stay inline: %+v", wireRequest.Messages)
		}

		writer.Header().Set("Content-Type", "application/json")
		json.NewEncoder(writer).Encode(map[string]any{
			"id":      "chatcmpl-9",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "Hi!"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 8, "completion_tokens": 2, "total_tokens": 10},
		})
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")

	response, err := provider.Complete(context.Background(), ai.CompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: "You are terse."},
			{Role: ai.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if response.Content != "Hi!" {
		t.Errorf("expected content 'Hi!', got %q", response.Content)
	}
	if response.Usage.TotalTokens != response.Usage.PromptTokens+response.Usage.CompletionTokens {
		t.Errorf("usage does not add up: %+v", response.Usage)
	}
	if response.LatencyMs < 0 {
		t.Errorf("negative latency %d", response.LatencyMs)
	}
}

func TestComplete_AuthFailureIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("wrong-key")

	response, err := provider.Complete(context.Background(), ai.CompletionRequest{
		Model:    "gpt-4o-mini",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("auth failure must be reported in the response, got error: %v", err)
	}
	if response.ErrorDetails == nil || response.ErrorDetails.Kind != ai.ErrorKindAuth {
		t.Errorf("expected auth_error details, got %+v", response.ErrorDetails)
	}
}

func TestListModels_FallsBackWhenCatalogUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		http.Error(writer, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")

	models := provider.ListModels(context.Background())
	if len(models) == 0 {
		t.Fatal("expected hardcoded minimum list, got none")
	}
	for _, descriptor := range models {
		if descriptor.Vendor != "openai" {
			t.Errorf("unexpected vendor %q", descriptor.Vendor)
		}
	}
}

func TestListModels_CachesLastGoodList(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !healthy {
			http.Error(writer, "down", http.StatusServiceUnavailable)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"data":[{"id":"gpt-4o-mini"},{"id":"gpt-4o"}]}`))
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")

	first := provider.ListModels(context.Background())
	if len(first) != 2 {
		t.Fatalf("expected 2 models from live catalog, got %d", len(first))
	}

	healthy = false
	second := provider.ListModels(context.Background())
	if len(second) != 2 {
		t.Errorf("expected cached catalog after outage, got %d models", len(second))
	}
}
