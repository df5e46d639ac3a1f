package llm

import (
	"strings"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// modelPricing holds USD cost per million tokens.
type modelPricing struct {
	input  float64
	output float64
}

// Longest-prefix match against the model name. Unknown models cost zero.
var pricingTable = map[string]modelPricing{
	"gpt-4o-mini":       {input: 0.15, output: 0.60},
	"gpt-4o":            {input: 2.50, output: 10.00},
	"gpt-4.1-mini":      {input: 0.40, output: 1.60},
	"gpt-4.1":           {input: 2.00, output: 8.00},
	"claude-3-5-haiku":  {input: 0.80, output: 4.00},
	"claude-3-5-sonnet": {input: 3.00, output: 15.00},
	"claude-sonnet-4":   {input: 3.00, output: 15.00},
}

// EstimateCost returns the approximate USD cost of a completion.
func EstimateCost(model string, usage models.TokenUsage) float64 {
	var best string
	for prefix := range pricingTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0
	}
	p := pricingTable[best]
	return float64(usage.PromptTokens)*p.input/1e6 + float64(usage.CompletionTokens)*p.output/1e6
}
