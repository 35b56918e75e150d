package llm

import (
	"strings"

	"github.com/ppiankov/digestrank/internal/model"
)

// Price is the cost per million tokens in USD
type Price struct {
	Input  float64
	Output float64
}

// prices holds known per-model rates. Versioned model names match by prefix.
var prices = map[string]Price{
	"gpt-4o-mini":      {Input: 0.15, Output: 0.60},
	"gpt-4o":           {Input: 2.50, Output: 10.00},
	"gpt-4.1-mini":     {Input: 0.40, Output: 1.60},
	"gpt-4.1":          {Input: 2.00, Output: 8.00},
	"claude-3-5-haiku": {Input: 0.80, Output: 4.00},
	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
}

// PriceFor returns the rate for modelName, picking the longest known prefix
func PriceFor(modelName string) (Price, bool) {
	name := strings.ToLower(modelName)
	if p, ok := prices[name]; ok {
		return p, true
	}

	best := ""
	for known := range prices {
		if strings.HasPrefix(name, known) && len(known) > len(best) {
			best = known
		}
	}
	if best == "" {
		return Price{}, false
	}
	return prices[best], true
}

// EstimateCost converts token usage into USD. Unknown models cost 0.
func EstimateCost(modelName string, usage model.TokenUsage) float64 {
	p, ok := PriceFor(modelName)
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1_000_000*p.Input +
		float64(usage.CompletionTokens)/1_000_000*p.Output
}

func modelUsage(prompt, completion, total int) model.TokenUsage {
	if total == 0 {
		total = prompt + completion
	}
	return model.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
	}
}
