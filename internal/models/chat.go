package models

import "time"

// Message roles accepted on the inbound contract
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single turn of the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the unified inbound request. One instance per call,
// owned by a single orchestration and discarded after the response.
type ChatCompletionRequest struct {
	Model           string        `json:"model"`
	Messages        []ChatMessage `json:"messages"`
	Temperature     *float64      `json:"temperature,omitempty"`
	MaxOutputTokens *int          `json:"max_tokens,omitempty"`
	Stream          bool          `json:"stream,omitempty"`
	SessionID       string        `json:"session_id,omitempty"`
	UserID          string        `json:"user_id,omitempty"`
}

// NormalizedCompletion is the provider-agnostic result of one upstream call.
// TotalTokens is always derived as the sum, never stored independently.
type NormalizedCompletion struct {
	ID               string
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens returns the derived token total
func (n *NormalizedCompletion) TotalTokens() int {
	return n.PromptTokens + n.CompletionTokens
}

// UsageBreakdown reports token consumption on the response contract
type UsageBreakdown struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CostBreakdown reports the USD cost of one request. TotalCost is always
// InputCost + OutputCost, computed once by the cost calculator.
type CostBreakdown struct {
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
	Currency   string  `json:"currency"`
}

// ChatCompletionResponse is the unified response contract
type ChatCompletionResponse struct {
	ID        string         `json:"id"`
	Model     string         `json:"model"`
	Provider  Provider       `json:"provider"`
	Content   string         `json:"content"`
	Usage     UsageBreakdown `json:"usage"`
	Cost      CostBreakdown  `json:"cost"`
	CreatedAt time.Time      `json:"created_at"`
}
