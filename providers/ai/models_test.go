package ai

import (
	"errors"
	"testing"
)

func TestCompletionRequestValidate(t *testing.T) {
	valid := CompletionRequest{
		Model:    "openai/gpt-4o-mini",
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	tests := []struct {
		name    string
		request CompletionRequest
	}{
		{
			name:    "missing model",
			request: CompletionRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}},
		},
		{
			name:    "no messages",
			request: CompletionRequest{Model: "openai/gpt-4o-mini"},
		},
		{
			name: "empty message content",
			request: CompletionRequest{
				Model:    "openai/gpt-4o-mini",
				Messages: []ChatMessage{{Role: RoleUser, Content: ""}},
			},
		},
		{
			name: "unknown role",
			request: CompletionRequest{
				Model:    "openai/gpt-4o-mini",
				Messages: []ChatMessage{{Role: "tool", Content: "x"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("expected *RequestError, got %T", err)
			}
			if reqErr.Kind != ErrorKindValidation {
				t.Errorf("expected kind validation_error, got %q", reqErr.Kind)
			}
		})
	}
}

func TestCompletionRequestValidate_ImageOnlyMessageIsContent(t *testing.T) {
	request := CompletionRequest{
		Model: "openai/gpt-4o",
		Messages: []ChatMessage{
			{Role: RoleUser, Parts: []ContentPart{{Type: ContentPartImage, ImageURL: "https://example.com/cat.png"}}},
		},
	}
	if err := request.Validate(); err != nil {
		t.Fatalf("image-only message should count as content: %v", err)
	}
}

func TestSplitModelRef(t *testing.T) {
	vendor, modelID, err := SplitModelRef("openai/gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vendor != "openai" || modelID != "gpt-4o-mini" {
		t.Errorf("got (%q, %q)", vendor, modelID)
	}

	// OpenRouter ids contain slashes; only the first separator splits.
	vendor, modelID, err = SplitModelRef("openrouter/meta-llama/llama-3-70b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vendor != "openrouter" || modelID != "meta-llama/llama-3-70b" {
		t.Errorf("got (%q, %q)", vendor, modelID)
	}

	for _, bad := range []string{"gpt-4o-mini", "/gpt-4o", "openai/", ""} {
		if _, _, err := SplitModelRef(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestEstimateUsage_TotalsAddUp(t *testing.T) {
	usage := EstimateUsage("what is the capital of France", "The capital of France is Paris.")
	if usage.TotalTokens != usage.PromptTokens+usage.CompletionTokens {
		t.Errorf("total %d != prompt %d + completion %d", usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)
	}
	if usage.PromptTokens == 0 || usage.CompletionTokens == 0 {
		t.Errorf("expected non-zero estimates, got %+v", usage)
	}
}

func TestChatMessageText_MultimodalParts(t *testing.T) {
	message := ChatMessage{
		Role: RoleUser,
		Parts: []ContentPart{
			{Type: ContentPartText, Text: "look at this"},
			{Type: ContentPartImage, ImageURL: "https://example.com/cat.png"},
			{Type: ContentPartText, Text: "what breed is it?"},
		},
	}
	if got := message.Text(); got != "look at this\nwhat breed is it?" {
		t.Errorf("unexpected text %q", got)
	}
	if !message.HasImages() {
		t.Error("expected HasImages to be true")
	}
}
