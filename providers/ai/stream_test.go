package ai

import (
	"context"
	"testing"
)

func TestFrameStreamCollect(t *testing.T) {
	stream := NewFrameStream(func(yield func(Frame, error) bool) {
		yield(Frame{ID: "r1", Vendor: "openai", Model: "gpt-4o-mini", ContentDelta: "Hel"}, nil)
		yield(Frame{ContentDelta: "lo"}, nil)
		yield(Frame{FinishReason: FinishStop, Usage: &Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}}, nil)
	})

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if response.Content != "Hello" {
		t.Errorf("expected content 'Hello', got %q", response.Content)
	}
	if response.FinishReason != FinishStop {
		t.Errorf("expected finish reason stop, got %q", response.FinishReason)
	}
	if response.ID != "r1" || response.Vendor != "openai" {
		t.Errorf("identity not carried over: %+v", response)
	}
	if response.Usage.TotalTokens != 5 {
		t.Errorf("expected reported usage, got %+v", response.Usage)
	}
}

func TestFrameStreamCollect_EstimatesMissingUsage(t *testing.T) {
	stream := NewFrameStream(func(yield func(Frame, error) bool) {
		yield(Frame{ContentDelta: "some words here"}, nil)
		yield(Frame{FinishReason: FinishStop}, nil)
	})

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if response.Usage.TotalTokens == 0 {
		t.Error("expected estimated usage for unreported vendor usage")
	}
	if response.Usage.TotalTokens != response.Usage.PromptTokens+response.Usage.CompletionTokens {
		t.Errorf("usage does not add up: %+v", response.Usage)
	}
}

func TestNewSimulatedStream_DeliversEachRuneOnce(t *testing.T) {
	full := "The quick brown fox jumps over the lazy dog, twice around the block, then rests."
	response := &NormalizedResponse{
		ID:      "sim-1",
		Vendor:  "openrouter",
		Model:   "meta-llama/llama-3-70b",
		Content: full,
	}

	stream := NewSimulatedStream(context.Background(), response)

	var rebuilt string
	terminals := 0
	for frame, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		rebuilt += frame.ContentDelta
		if frame.Terminal() {
			terminals++
			if frame.FinishReason != FinishStop {
				t.Errorf("expected stop, got %q", frame.FinishReason)
			}
		}
	}

	if rebuilt != full {
		t.Errorf("concatenated deltas differ from source text:\n got %q\nwant %q", rebuilt, full)
	}
	if terminals != 1 {
		t.Errorf("expected exactly one terminal frame, got %d", terminals)
	}
}

func TestNewSimulatedStream_CancelledEmitsAbortedTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the first chunk

	stream := NewSimulatedStream(ctx, &NormalizedResponse{ID: "sim-2", Content: "never delivered"})

	terminals := 0
	for frame, err := range stream.Iter() {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		if frame.Terminal() {
			terminals++
			if frame.FinishReason != FinishAborted {
				t.Errorf("expected aborted, got %q", frame.FinishReason)
			}
		} else if frame.ContentDelta != "" {
			t.Errorf("cancelled stream must not deliver content, got %q", frame.ContentDelta)
		}
	}

	if terminals != 1 {
		t.Errorf("expected exactly one terminal frame, got %d", terminals)
	}
}

func TestErrorFrame_AbortKindMapsToAbortedReason(t *testing.T) {
	frame := ErrorFrame("r1", "openai", "gpt-4o", &ErrorDetails{Kind: ErrorKindAborted, Message: "stopped"})
	if frame.FinishReason != FinishAborted {
		t.Errorf("expected aborted finish reason, got %q", frame.FinishReason)
	}

	frame = ErrorFrame("r1", "openai", "gpt-4o", &ErrorDetails{Kind: ErrorKindProvider, Message: "boom"})
	if frame.FinishReason != FinishError {
		t.Errorf("expected error finish reason, got %q", frame.FinishReason)
	}
}
