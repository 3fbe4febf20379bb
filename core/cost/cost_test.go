package cost

import (
	"math"
	"testing"

	"omnigate/providers/ai"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLookupLongestPrefixWins(t *testing.T) {
	mini, ok := Lookup("gpt-4o-mini-2024-07-18")
	if !ok {
		t.Fatal("expected pricing for gpt-4o-mini variant")
	}
	full, _ := Lookup("gpt-4o-2024-08-06")
	if approx(mini.InputCostPerMillion, full.InputCostPerMillion) {
		t.Errorf("mini and full pricing must differ: %+v vs %+v", mini, full)
	}
}

func TestLookupStripsRouterPrefix(t *testing.T) {
	direct, ok := Lookup("claude-3-5-sonnet-20241022")
	if !ok {
		t.Fatal("expected direct pricing")
	}
	routed, ok := Lookup("anthropic/claude-3-5-sonnet")
	if !ok {
		t.Fatal("expected routed pricing")
	}
	if !approx(direct.OutputCostPerMillion, routed.OutputCostPerMillion) {
		t.Errorf("routed id must match direct pricing: %+v vs %+v", routed, direct)
	}
}

func TestEstimate(t *testing.T) {
	usage := ai.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000, TotalTokens: 1_500_000}
	got := Estimate("gemini-2.0-flash", usage)
	if !approx(got, 0.10+0.20) {
		t.Errorf("expected 0.30, got %v", got)
	}

	if got := Estimate("totally-unknown-model", usage); got != 0 {
		t.Errorf("unknown models cost 0, got %v", got)
	}
}
