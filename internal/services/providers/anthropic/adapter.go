package anthropic

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/providers"
	"github.com/omnigate/omnigate/internal/utils"
	"github.com/omnigate/omnigate/internal/utils/clientcache"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	providerName = "anthropic"

	// Anthropic requires max_tokens on every request
	defaultMaxTokens = 1024
)

// Adapter invokes the Anthropic Messages API and normalizes the result
type Adapter struct {
	cfg         models.ProviderConfig
	clientCache *clientcache.Cache[*anthropic.Client]
}

// New creates a new Anthropic adapter
func New(cfg models.ProviderConfig) *Adapter {
	return &Adapter{
		cfg:         cfg,
		clientCache: clientcache.NewCache[*anthropic.Client](),
	}
}

// Name returns the provider tag
func (a *Adapter) Name() models.Provider {
	return models.ProviderAnthropic
}

// Invoke sends a non-streaming message request to Anthropic
func (a *Adapter) Invoke(ctx context.Context, params providers.InvokeParams) (*models.NormalizedCompletion, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}

	msgParams := BuildParams(params)

	startTime := time.Now()
	message, err := client.Messages.New(ctx, msgParams)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("Anthropic request failed after %v - model: %s", duration, params.Model)
		return nil, mapError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	content := text.String()

	completion := &models.NormalizedCompletion{
		ID:               message.ID,
		Text:             content,
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}
	if completion.CompletionTokens == 0 && content != "" {
		completion.CompletionTokens = utils.EstimateTokens(content)
	}

	fiberlog.Infof("Anthropic request completed in %v - model: %s, usage: input:%d, output:%d",
		duration, params.Model, completion.PromptTokens, completion.CompletionTokens)
	return completion, nil
}

// BuildParams translates the generic request into Anthropic's wire shape.
// System-role messages are hoisted into the system parameter and excluded
// from the user/assistant turn list.
func BuildParams(params providers.InvokeParams) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	turns := make([]anthropic.MessageParam, 0, len(params.Messages))

	for _, message := range params.Messages {
		switch message.Role {
		case models.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: message.Content})
		case models.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(message.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(message.Content)))
		}
	}

	maxTokens := int64(defaultMaxTokens)
	if params.MaxOutputTokens != nil {
		maxTokens = int64(*params.MaxOutputTokens)
	}

	msgParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		Messages:  turns,
		MaxTokens: maxTokens,
		System:    system,
	}
	if params.Temperature != nil {
		msgParams.Temperature = anthropic.Float(*params.Temperature)
	}

	return msgParams
}

func (a *Adapter) client() (*anthropic.Client, error) {
	if a.cfg.APIKey == "" {
		return nil, models.NewAuthenticationError(providerName, errors.New("API key not configured"))
	}

	return a.clientCache.GetOrCreate(providerName, func() (*anthropic.Client, error) {
		opts := []option.RequestOption{
			option.WithAPIKey(a.cfg.APIKey),
		}
		if a.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(a.cfg.BaseURL))
		}
		for key, value := range a.cfg.Headers {
			opts = append(opts, option.WithHeader(key, value))
		}
		if a.cfg.TimeoutMs > 0 {
			opts = append(opts, option.WithRequestTimeout(time.Duration(a.cfg.TimeoutMs)*time.Millisecond))
		}

		client := anthropic.NewClient(opts...)
		return &client, nil
	})
}

// mapError translates SDK errors into the shared taxonomy
func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewTransientProviderError(providerName, "request timed out", err)
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 401, 403:
			return models.NewAuthenticationError(providerName, err)
		case 404:
			return models.NewProviderError(providerName, "model not available upstream", err)
		case 429, 529:
			return models.NewRateLimitError(providerName, err)
		default:
			if apierr.StatusCode >= 500 {
				return models.NewTransientProviderError(providerName, "upstream service error", err)
			}
			return models.NewProviderError(providerName, "request failed", err)
		}
	}

	return models.NewTransientProviderError(providerName, "request failed", err)
}
