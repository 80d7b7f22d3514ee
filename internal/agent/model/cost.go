package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Pricing is the USD cost per 1M text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// pricing is ordered longest name first so "flash-lite" wins over "flash".
var pricing = []struct {
	model string
	price Pricing
}{
	{"gemini-2.5-flash-lite", Pricing{InputPerM: 0.10, OutputPerM: 0.40}},
	{"gemini-2.5-flash", Pricing{InputPerM: 0.30, OutputPerM: 2.50}},
	{"gemini-2.5-pro", Pricing{InputPerM: 1.25, OutputPerM: 10.00}},
	{"gemini-2.0-flash", Pricing{InputPerM: 0.10, OutputPerM: 0.40}},
}

// ResolvePricing matches the model by prefix, so dated previews and
// "models/" qualified names price like their family. Unknown models cost
// zero.
func ResolvePricing(name string) Pricing {
	name = strings.TrimPrefix(strings.ToLower(name), "models/")
	for _, p := range pricing {
		if strings.HasPrefix(name, p.model) {
			return p.price
		}
	}
	return Pricing{}
}

// ComputeCost prices one call's token usage.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	return inputCost, outputCost, inputCost + outputCost
}
