package openai

import (
	"context"
	"errors"
	"time"

	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/providers"
	"github.com/omnigate/omnigate/internal/utils"
	"github.com/omnigate/omnigate/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

const providerName = "openai"

// Adapter invokes OpenAI chat completions and normalizes the result
type Adapter struct {
	cfg         models.ProviderConfig
	clientCache *clientcache.Cache[*openai.Client]
}

// New creates a new OpenAI adapter
func New(cfg models.ProviderConfig) *Adapter {
	return &Adapter{
		cfg:         cfg,
		clientCache: clientcache.NewCache[*openai.Client](),
	}
}

// Name returns the provider tag
func (a *Adapter) Name() models.Provider {
	return models.ProviderOpenAI
}

// Invoke sends a non-streaming chat completion request to OpenAI
func (a *Adapter) Invoke(ctx context.Context, params providers.InvokeParams) (*models.NormalizedCompletion, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}

	oaParams := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(params.Model),
		Messages: convertMessages(params.Messages),
	}
	if params.Temperature != nil {
		oaParams.Temperature = openai.Float(*params.Temperature)
	}
	if params.MaxOutputTokens != nil {
		oaParams.MaxTokens = openai.Int(int64(*params.MaxOutputTokens))
	}

	startTime := time.Now()
	resp, err := client.Chat.Completions.New(ctx, oaParams)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("OpenAI request failed after %v - model: %s", duration, params.Model)
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, models.NewProviderError(providerName, "response contained no choices", nil)
	}

	content := resp.Choices[0].Message.Content
	completion := &models.NormalizedCompletion{
		ID:               resp.ID,
		Text:             content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	if completion.CompletionTokens == 0 && content != "" {
		completion.CompletionTokens = utils.EstimateTokens(content)
	}

	fiberlog.Infof("OpenAI request completed in %v - model: %s, usage: prompt:%d, completion:%d",
		duration, params.Model, completion.PromptTokens, completion.CompletionTokens)
	return completion, nil
}

func (a *Adapter) client() (*openai.Client, error) {
	if a.cfg.APIKey == "" {
		return nil, models.NewAuthenticationError(providerName, errors.New("API key not configured"))
	}

	return a.clientCache.GetOrCreate(providerName, func() (*openai.Client, error) {
		opts := []openaiOption.RequestOption{
			openaiOption.WithAPIKey(a.cfg.APIKey),
		}
		if a.cfg.BaseURL != "" {
			opts = append(opts, openaiOption.WithBaseURL(a.cfg.BaseURL))
		}
		for key, value := range a.cfg.Headers {
			opts = append(opts, openaiOption.WithHeader(key, value))
		}
		if a.cfg.TimeoutMs > 0 {
			opts = append(opts, openaiOption.WithRequestTimeout(time.Duration(a.cfg.TimeoutMs)*time.Millisecond))
		}

		client := openai.NewClient(opts...)
		return &client, nil
	})
}

// convertMessages translates the generic message list into OpenAI's wire shape
func convertMessages(messages []models.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case models.RoleSystem:
			converted = append(converted, openai.SystemMessage(message.Content))
		case models.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(message.Content))
		default:
			converted = append(converted, openai.UserMessage(message.Content))
		}
	}
	return converted
}

// mapError translates SDK errors into the shared taxonomy
func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTransientProviderError(providerName, "request timed out", err)
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 401, 403:
			return models.NewAuthenticationError(providerName, err)
		case 404:
			return models.NewProviderError(providerName, "model not available upstream", err)
		case 429:
			return models.NewRateLimitError(providerName, err)
		default:
			if apierr.StatusCode >= 500 {
				return models.NewTransientProviderError(providerName, "upstream service error", err)
			}
			return models.NewProviderError(providerName, "request failed", err)
		}
	}

	// Plain transport failures (connection reset, DNS) are worth a retry
	return models.NewTransientProviderError(providerName, "request failed", err)
}
