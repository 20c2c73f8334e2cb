package models

// Provider identifies an upstream model vendor
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Valid reports whether the provider tag is one of the supported vendors
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}

// ModelPricing holds per-1000-token prices in USD
type ModelPricing struct {
	InputPer1K  float64 `yaml:"input" json:"input"`
	OutputPer1K float64 `yaml:"output" json:"output"`
}

// PricingEntry is one immutable row of the pricing catalog. Loaded once at
// startup, looked up by read-only reference from every request path.
type PricingEntry struct {
	ModelID         string       `yaml:"-" json:"model_id"`
	DisplayName     string       `yaml:"name" json:"name"`
	Provider        Provider     `yaml:"provider" json:"provider"`
	ContextWindow   int          `yaml:"context_window" json:"context_window"`
	MaxOutputTokens int          `yaml:"max_output_tokens" json:"max_output_tokens"`
	Pricing         ModelPricing `yaml:"pricing" json:"pricing"`
}
