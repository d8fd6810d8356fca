package services

// ModelPrice holds per-model API pricing in USD per million tokens.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing returns the builtin pricing table. Prices are USD per
// million tokens as published by the providers.
func DefaultPricing() map[string]ModelPrice {
	return map[string]ModelPrice{
		"gpt-4o":        {InputPerMillion: 2.50, OutputPerMillion: 10.00},
		"gpt-4o-mini":   {InputPerMillion: 0.15, OutputPerMillion: 0.60},
		"gpt-4.1":       {InputPerMillion: 2.00, OutputPerMillion: 8.00},
		"gpt-4.1-mini":  {InputPerMillion: 0.40, OutputPerMillion: 1.60},
		"gpt-4.1-nano":  {InputPerMillion: 0.10, OutputPerMillion: 0.40},
		"o3-mini":       {InputPerMillion: 1.10, OutputPerMillion: 4.40},
		"gpt-3.5-turbo": {InputPerMillion: 0.50, OutputPerMillion: 1.50},
	}
}

// CostCalculator computes the monetary cost of completions from an injected
// pricing table. It holds no mutable state and is safe for concurrent use.
type CostCalculator struct {
	pricing  map[string]ModelPrice
	fallback ModelPrice
}

// NewCostCalculator builds a calculator over the given pricing table.
// Unknown models are priced at the cheapest known tier.
func NewCostCalculator(pricing map[string]ModelPrice) *CostCalculator {
	if len(pricing) == 0 {
		pricing = DefaultPricing()
	}

	fallback := ModelPrice{}
	first := true
	for _, p := range pricing {
		if first || p.InputPerMillion+p.OutputPerMillion < fallback.InputPerMillion+fallback.OutputPerMillion {
			fallback = p
			first = false
		}
	}

	return &CostCalculator{pricing: pricing, fallback: fallback}
}

// Price returns the pricing for a model, falling back to the cheapest tier.
func (c *CostCalculator) Price(model string) ModelPrice {
	if p, ok := c.pricing[model]; ok {
		return p
	}
	return c.fallback
}

// Cost returns the USD cost of a completion. Pure and deterministic;
// zero tokens always cost zero.
func (c *CostCalculator) Cost(model string, promptTokens, completionTokens int) float64 {
	p := c.Price(model)
	return float64(promptTokens)/1e6*p.InputPerMillion +
		float64(completionTokens)/1e6*p.OutputPerMillion
}
