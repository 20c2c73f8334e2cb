package utils

import "github.com/omnigate/omnigate/internal/models"

// EstimateTokens approximates the token count of a text when a provider
// returns no usage data. The heuristic is one token per four characters,
// with a floor of one token for non-empty text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// EstimatePromptTokens approximates the token count of a full message list
func EstimatePromptTokens(messages []models.ChatMessage) int {
	total := 0
	for _, message := range messages {
		total += EstimateTokens(message.Content)
	}
	return total
}
