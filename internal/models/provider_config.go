package models

// ProviderConfig holds per-provider upstream configuration
type ProviderConfig struct {
	APIKey    string            `yaml:"api_key" json:"api_key,omitzero"`
	BaseURL   string            `yaml:"base_url" json:"base_url,omitzero"`
	TimeoutMs int               `yaml:"timeout_ms" json:"timeout_ms,omitzero"`
	Headers   map[string]string `yaml:"headers" json:"headers,omitzero"`
}

// RetryConfig tunes the dispatch retry/backoff policy
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" json:"max_attempts,omitzero"`
	BaseDelayMs      int `yaml:"base_delay_ms" json:"base_delay_ms,omitzero"`
	AttemptTimeoutMs int `yaml:"attempt_timeout_ms" json:"attempt_timeout_ms,omitzero"`
}
