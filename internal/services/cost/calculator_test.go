package cost

import (
	"math/rand/v2"
	"testing"

	"github.com/omnigate/omnigate/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func entryWithPricing(input, output float64) *models.PricingEntry {
	return &models.PricingEntry{
		ModelID:         "test-model",
		Provider:        models.ProviderOpenAI,
		MaxOutputTokens: 4096,
		Pricing: models.ModelPricing{
			InputPer1K:  input,
			OutputPer1K: output,
		},
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name             string
		entry            *models.PricingEntry
		promptTokens     int
		completionTokens int
		wantInput        float64
		wantOutput       float64
		wantTotal        float64
	}{
		{
			name:             "gpt-4 style pricing",
			entry:            entryWithPricing(0.03, 0.06),
			promptTokens:     10,
			completionTokens: 20,
			wantInput:        0.0003,
			wantOutput:       0.0012,
			wantTotal:        0.0015,
		},
		{
			name:             "zero tokens cost nothing",
			entry:            entryWithPricing(0.03, 0.06),
			promptTokens:     0,
			completionTokens: 0,
			wantInput:        0,
			wantOutput:       0,
			wantTotal:        0,
		},
		{
			name:             "prompt only",
			entry:            entryWithPricing(0.003, 0.015),
			promptTokens:     1000,
			completionTokens: 0,
			wantInput:        0.003,
			wantOutput:       0,
			wantTotal:        0.003,
		},
		{
			name:             "large token counts",
			entry:            entryWithPricing(0.0025, 0.01),
			promptTokens:     128000,
			completionTokens: 16384,
			wantInput:        0.32,
			wantOutput:       0.16384,
			wantTotal:        0.48384,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.entry, tt.promptTokens, tt.completionTokens)
			require.NoError(t, err)
			require.Equal(t, tt.wantInput, got.InputCost)
			require.Equal(t, tt.wantOutput, got.OutputCost)
			require.Equal(t, tt.wantTotal, got.TotalCost)
			require.Equal(t, "USD", got.Currency)
		})
	}
}

func TestComputeNegativeTokens(t *testing.T) {
	entry := entryWithPricing(0.03, 0.06)

	_, err := Compute(entry, -1, 10)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, models.ErrorTypeValidation, appErr.Type)

	_, err = Compute(entry, 10, -1)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, models.ErrorTypeValidation, appErr.Type)
}

func TestComputeNilEntry(t *testing.T) {
	_, err := Compute(nil, 10, 10)
	require.Error(t, err)
}

// The total must always equal the sum of the two rounded sides, whatever the
// token counts. A float comparison would mask drift, so the check runs on
// decimal representations.
func TestComputeTotalAdditivity(t *testing.T) {
	entry := entryWithPricing(0.00015, 0.0006)

	for range 200 {
		prompt := rand.N(1_000_000)
		completion := rand.N(100_000)

		got, err := Compute(entry, prompt, completion)
		require.NoError(t, err)

		sum := decimal.NewFromFloat(got.InputCost).Add(decimal.NewFromFloat(got.OutputCost))
		require.True(t, sum.Equal(decimal.NewFromFloat(got.TotalCost)),
			"prompt=%d completion=%d: %v + %v != %v", prompt, completion, got.InputCost, got.OutputCost, got.TotalCost)
	}
}

func TestComputeRoundsHalfEven(t *testing.T) {
	// 1 token at 0.0005/1K is 0.0000005, exactly halfway at 6 places.
	// Half-even rounds to the even neighbor 0.
	entry := entryWithPricing(0.0005, 0.0015)

	got, err := Compute(entry, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 0.0, got.InputCost)

	// 3 tokens at 0.0005/1K is 0.0000015, halfway again; even neighbor is
	// 0.000002.
	got, err = Compute(entry, 3, 0)
	require.NoError(t, err)
	require.Equal(t, 0.000002, got.InputCost)
}
