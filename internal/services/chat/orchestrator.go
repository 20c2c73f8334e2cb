// Package chat orchestrates one completion request end to end: validate,
// resolve the model, dispatch to its provider with retries, price the usage,
// and record it in the ledger.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/cost"
	"github.com/omnigate/omnigate/internal/services/ledger"
	"github.com/omnigate/omnigate/internal/services/pricing"
	"github.com/omnigate/omnigate/internal/services/providers"
	"github.com/omnigate/omnigate/internal/services/retry"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const (
	minTemperature = 0.0
	maxTemperature = 2.0
)

// FailureReporter receives usage records that could not be committed to the
// ledger. *ledger.Reporter satisfies it.
type FailureReporter interface {
	Report(ledger.WriteFailure)
}

type Orchestrator struct {
	catalog  *pricing.Catalog
	registry *providers.Registry
	ledger   *ledger.Service
	reporter FailureReporter
	retry    retry.Policy
}

func NewOrchestrator(
	catalog *pricing.Catalog,
	registry *providers.Registry,
	ledgerService *ledger.Service,
	reporter FailureReporter,
	retryPolicy retry.Policy,
) *Orchestrator {
	return &Orchestrator{
		catalog:  catalog,
		registry: registry,
		ledger:   ledgerService,
		reporter: reporter,
		retry:    retryPolicy,
	}
}

// Complete serves one chat completion. A failed ledger write does not fail
// the request: the completion already cost money upstream, so it is returned
// to the caller and the write failure goes to the reporter instead.
func (o *Orchestrator) Complete(ctx context.Context, requestID string, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "session-" + uuid.NewString()
	}

	entry, err := o.catalog.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	if req.MaxOutputTokens != nil && entry.MaxOutputTokens > 0 && *req.MaxOutputTokens > entry.MaxOutputTokens {
		return nil, models.NewValidationError("max_tokens",
			fmt.Sprintf("exceeds the %d token limit for model %s", entry.MaxOutputTokens, entry.ModelID))
	}

	adapter, err := o.registry.Get(entry.Provider)
	if err != nil {
		return nil, err
	}

	invokeParams := providers.InvokeParams{
		Model:           entry.ModelID,
		Messages:        req.Messages,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if invokeParams.MaxOutputTokens == nil && entry.MaxOutputTokens > 0 {
		capTokens := entry.MaxOutputTokens
		invokeParams.MaxOutputTokens = &capTokens
	}

	fiberlog.Infof("[%s] dispatching model=%s provider=%s session=%s",
		requestID, entry.ModelID, entry.Provider, sessionID)

	started := time.Now()
	completion, err := retry.Do(ctx, o.retry, requestID, func(attemptCtx context.Context) (*models.NormalizedCompletion, error) {
		return adapter.Invoke(attemptCtx, invokeParams)
	})
	if err != nil {
		return nil, err
	}

	costBreakdown, err := cost.Compute(entry, completion.PromptTokens, completion.CompletionTokens)
	if err != nil {
		return nil, models.NewInternalError("failed to price completion", err)
	}

	// A cancelled request bills nothing, even when the provider call happened
	// to finish before the cancellation was observed.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	recordParams := models.RecordUsageParams{
		SessionID:        sessionID,
		UserID:           req.UserID,
		ModelID:          entry.ModelID,
		Provider:         entry.Provider,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		Cost:             costBreakdown.TotalCost,
		At:               now,
	}
	if _, err := o.ledger.Record(ctx, recordParams); err != nil {
		o.reporter.Report(ledger.WriteFailure{
			Params:    recordParams,
			RequestID: requestID,
			Err:       err,
			At:        now,
		})
	}

	fiberlog.Infof("[%s] completed model=%s tokens=%d cost=%.6f duration=%s",
		requestID, entry.ModelID, completion.TotalTokens(), costBreakdown.TotalCost, time.Since(started))

	return &models.ChatCompletionResponse{
		ID:        completion.ID,
		Model:     entry.ModelID,
		Provider:  entry.Provider,
		Content:   completion.Text,
		Usage: models.UsageBreakdown{
			PromptTokens:     completion.PromptTokens,
			CompletionTokens: completion.CompletionTokens,
			TotalTokens:      completion.TotalTokens(),
		},
		Cost:      costBreakdown,
		CreatedAt: now,
	}, nil
}

func validateRequest(req *models.ChatCompletionRequest) error {
	if req == nil {
		return models.NewValidationError("request", "request body is required")
	}
	if req.Model == "" {
		return models.NewValidationError("model", "model is required")
	}
	if len(req.Messages) == 0 {
		return models.NewValidationError("messages", "at least one message is required")
	}
	hasUser := false
	for i, msg := range req.Messages {
		switch msg.Role {
		case models.RoleUser:
			hasUser = true
		case models.RoleSystem, models.RoleAssistant:
		default:
			return models.NewValidationError(
				fmt.Sprintf("messages[%d].role", i),
				fmt.Sprintf("unknown role %q", msg.Role))
		}
		if msg.Content == "" {
			return models.NewValidationError(
				fmt.Sprintf("messages[%d].content", i), "content must not be empty")
		}
	}
	if !hasUser {
		return models.NewValidationError("messages", "at least one user message is required")
	}
	if req.Temperature != nil && (*req.Temperature < minTemperature || *req.Temperature > maxTemperature) {
		return models.NewValidationError("temperature",
			fmt.Sprintf("must be between %.1f and %.1f", minTemperature, maxTemperature))
	}
	if req.MaxOutputTokens != nil && *req.MaxOutputTokens <= 0 {
		return models.NewValidationError("max_tokens", "must be greater than zero")
	}
	if req.Stream {
		return models.NewValidationError("stream", "streaming responses are not supported")
	}
	return nil
}
