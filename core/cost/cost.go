// Package cost estimates the dollar cost of completed turns from reported
// token usage. Prices are expressed in USD per million tokens; the table is a
// coarse snapshot for observability, not a billing source.
package cost

import (
	"strings"

	"omnigate/providers/ai"
)

// ModelCost is the pricing structure for one model.
type ModelCost struct {
	// InputCostPerMillion is the cost in USD per 1 million prompt tokens.
	InputCostPerMillion float64 `json:"input_cost_per_million"`
	// OutputCostPerMillion is the cost in USD per 1 million completion tokens.
	OutputCostPerMillion float64 `json:"output_cost_per_million"`
}

// CalculateInputCost returns the cost for the given number of prompt tokens.
func (mc ModelCost) CalculateInputCost(tokens int) float64 {
	return (float64(tokens) / 1_000_000.0) * mc.InputCostPerMillion
}

// CalculateOutputCost returns the cost for the given number of completion tokens.
func (mc ModelCost) CalculateOutputCost(tokens int) float64 {
	return (float64(tokens) / 1_000_000.0) * mc.OutputCostPerMillion
}

// ForUsage returns the total cost of one turn.
func (mc ModelCost) ForUsage(usage ai.Usage) float64 {
	return mc.CalculateInputCost(usage.PromptTokens) + mc.CalculateOutputCost(usage.CompletionTokens)
}

// pricing maps model id prefixes to prices. Longest matching prefix wins, so
// "gpt-4o-mini" is found before "gpt-4o".
var pricing = map[string]ModelCost{
	"gpt-4o":            {InputCostPerMillion: 2.50, OutputCostPerMillion: 10.00},
	"gpt-4o-mini":       {InputCostPerMillion: 0.15, OutputCostPerMillion: 0.60},
	"gpt-4.1":           {InputCostPerMillion: 2.00, OutputCostPerMillion: 8.00},
	"gpt-4.1-mini":      {InputCostPerMillion: 0.40, OutputCostPerMillion: 1.60},
	"o3-mini":           {InputCostPerMillion: 1.10, OutputCostPerMillion: 4.40},
	"claude-3-5-haiku":  {InputCostPerMillion: 0.80, OutputCostPerMillion: 4.00},
	"claude-3-5-sonnet": {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	"claude-3-7-sonnet": {InputCostPerMillion: 3.00, OutputCostPerMillion: 15.00},
	"gemini-2.0-flash":  {InputCostPerMillion: 0.10, OutputCostPerMillion: 0.40},
	"gemini-1.5-pro":    {InputCostPerMillion: 1.25, OutputCostPerMillion: 5.00},
	"gemini-1.5-flash":  {InputCostPerMillion: 0.075, OutputCostPerMillion: 0.30},
}

// Lookup finds pricing for a model id by longest prefix match. The second
// return value reports whether pricing is known.
func Lookup(model string) (ModelCost, bool) {
	// OpenRouter ids carry an upstream vendor prefix; strip it for matching.
	if _, rest, found := strings.Cut(model, "/"); found {
		model = rest
	}

	best := ""
	var bestCost ModelCost
	for prefix, modelCost := range pricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
			bestCost = modelCost
		}
	}
	return bestCost, best != ""
}

// Estimate returns the cost of a turn, or 0 when the model is unpriced.
func Estimate(model string, usage ai.Usage) float64 {
	modelCost, ok := Lookup(model)
	if !ok {
		return 0
	}
	return modelCost.ForUsage(usage)
}
