package cost

import (
	"github.com/omnigate/omnigate/internal/models"

	"github.com/shopspring/decimal"
)

const (
	tokensPerUnit = 1000
	// Monetary values are rounded to 6 decimal places, half-even
	costScale = 6
	currency  = "USD"
)

var perUnit = decimal.NewFromInt(tokensPerUnit)

// Compute derives the cost breakdown for one request. Pure and deterministic:
// cost_side = (tokens / 1000) * price_per_1k, rounded half-even to 6 places
// once at the end, never on intermediate terms. The total is the sum of the
// two rounded sides so that total == input + output holds exactly.
func Compute(entry *models.PricingEntry, promptTokens, completionTokens int) (models.CostBreakdown, error) {
	if entry == nil {
		return models.CostBreakdown{}, models.NewInternalError("pricing entry is nil", nil)
	}
	if promptTokens < 0 {
		return models.CostBreakdown{}, models.NewValidationError("prompt_tokens", "must be non-negative")
	}
	if completionTokens < 0 {
		return models.CostBreakdown{}, models.NewValidationError("completion_tokens", "must be non-negative")
	}

	inputCost := costFor(promptTokens, entry.Pricing.InputPer1K)
	outputCost := costFor(completionTokens, entry.Pricing.OutputPer1K)
	totalCost := inputCost.Add(outputCost)

	return models.CostBreakdown{
		InputCost:  inputCost.InexactFloat64(),
		OutputCost: outputCost.InexactFloat64(),
		TotalCost:  totalCost.InexactFloat64(),
		Currency:   currency,
	}, nil
}

func costFor(tokens int, pricePer1K float64) decimal.Decimal {
	return decimal.NewFromInt(int64(tokens)).
		Mul(decimal.NewFromFloat(pricePer1K)).
		Div(perUnit).
		RoundBank(costScale)
}
