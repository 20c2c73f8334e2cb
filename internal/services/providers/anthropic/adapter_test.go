package anthropic

import (
	"context"
	"testing"

	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/providers"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"
)

func TestBuildParamsHoistsSystemMessages(t *testing.T) {
	params := providers.InvokeParams{
		Model: "claude-3-sonnet-20240229",
		Messages: []models.ChatMessage{
			{Role: models.RoleSystem, Content: "You are terse."},
			{Role: models.RoleUser, Content: "Hello"},
			{Role: models.RoleAssistant, Content: "Hi."},
			{Role: models.RoleSystem, Content: "Answer in French."},
			{Role: models.RoleUser, Content: "How are you?"},
		},
	}

	got := BuildParams(params)

	require.Equal(t, anthropic.Model("claude-3-sonnet-20240229"), got.Model)

	// Both system messages hoisted, in order, and absent from the turns.
	require.Len(t, got.System, 2)
	require.Equal(t, "You are terse.", got.System[0].Text)
	require.Equal(t, "Answer in French.", got.System[1].Text)

	require.Len(t, got.Messages, 3)
	require.Equal(t, anthropic.MessageParamRoleUser, got.Messages[0].Role)
	require.Equal(t, anthropic.MessageParamRoleAssistant, got.Messages[1].Role)
	require.Equal(t, anthropic.MessageParamRoleUser, got.Messages[2].Role)
}

func TestBuildParamsMaxTokens(t *testing.T) {
	params := providers.InvokeParams{
		Model:    "claude-3-sonnet-20240229",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "Hello"}},
	}

	// Anthropic requires max_tokens, so a default applies when unset.
	got := BuildParams(params)
	require.Equal(t, int64(defaultMaxTokens), got.MaxTokens)

	limit := 2048
	params.MaxOutputTokens = &limit
	got = BuildParams(params)
	require.Equal(t, int64(2048), got.MaxTokens)
}

func TestBuildParamsTemperature(t *testing.T) {
	params := providers.InvokeParams{
		Model:    "claude-3-sonnet-20240229",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "Hello"}},
	}

	got := BuildParams(params)
	require.False(t, got.Temperature.Valid())

	temp := 0.7
	params.Temperature = &temp
	got = BuildParams(params)
	require.True(t, got.Temperature.Valid())
	require.Equal(t, 0.7, got.Temperature.Value)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		wantType      models.ErrorType
		wantRetryable bool
	}{
		{"unauthorized", 401, models.ErrorTypeAuthentication, false},
		{"forbidden", 403, models.ErrorTypeAuthentication, false},
		{"model missing", 404, models.ErrorTypeProvider, false},
		{"rate limited", 429, models.ErrorTypeRateLimit, true},
		{"overloaded", 529, models.ErrorTypeRateLimit, true},
		{"server error", 500, models.ErrorTypeProvider, true},
		{"bad request", 400, models.ErrorTypeProvider, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(&anthropic.Error{StatusCode: tt.statusCode})

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, tt.wantType, appErr.Type)
			require.Equal(t, tt.wantRetryable, appErr.Retryable)
		})
	}
}

func TestInvokeWithoutAPIKey(t *testing.T) {
	adapter := New(models.ProviderConfig{})

	_, err := adapter.Invoke(context.Background(), providers.InvokeParams{
		Model:    "claude-3-sonnet-20240229",
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "Hello"}},
	})

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, models.ErrorTypeAuthentication, appErr.Type)
}
