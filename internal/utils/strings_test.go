package utils

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "whitespace only", text: "   \n\t ", want: 0},
		{name: "single word", text: "hello", want: 2},     // ceil(1 * 1.3)
		{name: "two words", text: "hello world", want: 3}, // ceil(2 * 1.3)
		{name: "ten words", text: strings.Repeat("word ", 10), want: 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestTruncateString(t *testing.T) {
	long := strings.Repeat("x", 600)

	got := TruncateString(long, 10)
	if !strings.HasPrefix(got, "xxxxxxxxxx...") {
		t.Errorf("expected truncated prefix, got %q", got)
	}
	if !strings.Contains(got, "total: 600 chars") {
		t.Errorf("expected original length in suffix, got %q", got)
	}

	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("short strings must pass through unchanged, got %q", got)
	}

	// Non-positive maxLen falls back to the default limit.
	if got := TruncateString(long, 0); !strings.Contains(got, "truncated") {
		t.Errorf("expected default-limit truncation, got %q", got)
	}
}
