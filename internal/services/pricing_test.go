package services

import (
	"math"
	"testing"
)

func TestCost_ZeroTokens(t *testing.T) {
	calc := NewCostCalculator(nil)

	for model := range DefaultPricing() {
		if cost := calc.Cost(model, 0, 0); cost != 0 {
			t.Errorf("Cost(%q, 0, 0) = %f, expected 0", model, cost)
		}
	}
	if cost := calc.Cost("unknown-model", 0, 0); cost != 0 {
		t.Errorf("Cost(unknown, 0, 0) = %f, expected 0", cost)
	}
}

func TestCost_KnownModel(t *testing.T) {
	calc := NewCostCalculator(map[string]ModelPrice{
		"test-model": {InputPerMillion: 2.0, OutputPerMillion: 8.0},
	})

	// 1M prompt tokens at $2 + 500k completion tokens at $8
	cost := calc.Cost("test-model", 1_000_000, 500_000)
	expected := 2.0 + 4.0
	if math.Abs(cost-expected) > 1e-9 {
		t.Errorf("Cost = %f, expected %f", cost, expected)
	}
}

func TestCost_Linearity(t *testing.T) {
	calc := NewCostCalculator(nil)

	base := calc.Cost("gpt-4o", 1000, 2000)
	double := calc.Cost("gpt-4o", 2000, 4000)
	if math.Abs(double-2*base) > 1e-12 {
		t.Errorf("cost not linear: 2*%g != %g", base, double)
	}

	promptOnly := calc.Cost("gpt-4o", 1000, 0)
	completionOnly := calc.Cost("gpt-4o", 0, 2000)
	if math.Abs(base-(promptOnly+completionOnly)) > 1e-12 {
		t.Error("cost should be additive across prompt and completion tokens")
	}
}

func TestCost_UnknownModelFallsBackToCheapest(t *testing.T) {
	calc := NewCostCalculator(map[string]ModelPrice{
		"pricey": {InputPerMillion: 10.0, OutputPerMillion: 30.0},
		"budget": {InputPerMillion: 0.1, OutputPerMillion: 0.4},
	})

	unknown := calc.Cost("never-heard-of-it", 1_000_000, 1_000_000)
	budget := calc.Cost("budget", 1_000_000, 1_000_000)
	if math.Abs(unknown-budget) > 1e-9 {
		t.Errorf("unknown model cost = %f, expected cheapest tier %f", unknown, budget)
	}
}

func TestNewCostCalculator_EmptyTableUsesDefaults(t *testing.T) {
	calc := NewCostCalculator(nil)
	if calc.Cost("gpt-4o", 1_000_000, 0) != 2.50 {
		t.Error("empty pricing table should fall back to builtin defaults")
	}
}
