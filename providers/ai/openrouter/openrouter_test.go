package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"omnigate/providers/ai"
)

func TestRequestToChatCompletion_KeepsPrefixedModelAndDegradesImages(t *testing.T) {
	request := ai.CompletionRequest{
		Model: "meta-llama/llama-3.1-70b-instruct",
		Messages: []ai.ChatMessage{
			{Role: ai.RoleSystem, Content: "be brief"},
			{Role: ai.RoleUser, Parts: []ai.ContentPart{
				{Type: ai.ContentPartText, Text: "what is this?"},
				{Type: ai.ContentPartImage, ImageURL: "https://example.com/cat.png"},
			}},
		},
	}

	wireRequest := requestToChatCompletion(request)

	if wireRequest.Model != "meta-llama/llama-3.1-70b-instruct" {
		t.Errorf("model id altered: %q", wireRequest.Model)
	}
	if len(wireRequest.Messages) != 2 {
		t.Fatalf("expected system kept inline plus user turn, got %+v", wireRequest.Messages)
	}
	if wireRequest.Messages[0].Role != "system" {
		t.Errorf("system message not kept inline: %+v", wireRequest.Messages[0])
	}
	if wireRequest.Messages[1].Content != "what is this?" {
		t.Errorf("image part not degraded to text: %q", wireRequest.Messages[1].Content)
	}
}

func TestStreamComplete_SimulatedReplay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if got := request.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if got := request.Header.Get("HTTP-Referer"); got != "https://example.com" {
			t.Errorf("expected attribution referer, got %q", got)
		}
		if got := request.Header.Get("X-Title"); got != "omnigate" {
			t.Errorf("expected attribution title, got %q", got)
		}
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `{"id":"gen-1","model":"meta-llama/llama-3.1-70b-instruct","choices":[{"message":{"role":"assistant","content":"Routed answer with several words in it"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}`)
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")
	provider.WithAttribution("https://example.com", "omnigate")

	stream, err := provider.StreamComplete(context.Background(), ai.CompletionRequest{
		Model:    "meta-llama/llama-3.1-70b-instruct",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("StreamComplete returned error: %v", err)
	}

	var rebuilt strings.Builder
	var terminals int
	for frame, iterErr := range stream.Iter() {
		if iterErr != nil {
			t.Fatalf("iterator error: %v", iterErr)
		}
		if frame.Terminal() {
			terminals++
			if frame.Usage == nil || frame.Usage.TotalTokens != 12 {
				t.Errorf("expected vendor usage on terminal frame, got %+v", frame.Usage)
			}
			continue
		}
		rebuilt.WriteString(frame.ContentDelta)
	}

	if terminals != 1 {
		t.Fatalf("expected exactly one terminal frame, got %d", terminals)
	}
	if rebuilt.String() != "Routed answer with several words in it" {
		t.Errorf("replayed content mismatch: %q", rebuilt.String())
	}
}

func TestComplete_MissingKeyIsAuthResponseNotError(t *testing.T) {
	provider := New()
	provider.WithAPIKey("")

	response, err := provider.Complete(context.Background(), ai.CompletionRequest{
		Model:    "openai/gpt-4o-mini",
		Messages: []ai.ChatMessage{{Role: ai.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("missing credentials must not surface as an error: %v", err)
	}
	if response.ErrorDetails == nil || response.ErrorDetails.Kind != ai.ErrorKindAuth {
		t.Errorf("expected auth error details, got %+v", response.ErrorDetails)
	}
	if response.FinishReason != ai.FinishError {
		t.Errorf("expected error finish reason, got %q", response.FinishReason)
	}
}

func TestListModels_LiveCatalogCached(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		calls++
		if calls > 1 {
			http.Error(writer, "down", http.StatusBadGateway)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `{"data":[{"id":"openai/gpt-4o-mini","name":"GPT-4o Mini"},{"id":"anthropic/claude-3.5-sonnet"}]}`)
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")

	models := provider.ListModels(context.Background())
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %+v", models)
	}
	if models[0].DisplayName != "GPT-4o Mini" {
		t.Errorf("display name not mapped: %+v", models[0])
	}

	// Endpoint now failing; the last good list must be served from cache.
	cached := provider.ListModels(context.Background())
	if len(cached) != 2 {
		t.Fatalf("expected cached catalog after endpoint failure, got %+v", cached)
	}
}
