package providers

import (
	"context"

	"github.com/omnigate/omnigate/internal/models"
)

// InvokeParams carries one normalized chat completion call to an adapter
type InvokeParams struct {
	Model           string
	Messages        []models.ChatMessage
	Temperature     *float64
	MaxOutputTokens *int
}

// ChatProvider is the single capability every upstream vendor adapter
// implements. Adapters translate the generic message list into their
// provider's wire shape, invoke it, and normalize the result. All failures
// surface as *models.AppError so the orchestrator can apply one retry
// policy uniformly.
type ChatProvider interface {
	Name() models.Provider
	Invoke(ctx context.Context, params InvokeParams) (*models.NormalizedCompletion, error)
}
