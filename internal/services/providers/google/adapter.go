package google

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/providers"
	"github.com/omnigate/omnigate/internal/utils"
	"github.com/omnigate/omnigate/internal/utils/clientcache"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

const providerName = "google"

// Adapter invokes the Gemini GenerateContent API and normalizes the result.
// Gemini does not always return usage metadata, so prompt tokens fall back to
// the CountTokens API and completion tokens to the local estimator.
type Adapter struct {
	cfg         models.ProviderConfig
	clientCache *clientcache.Cache[*genai.Client]
}

// New creates a new Google adapter
func New(cfg models.ProviderConfig) *Adapter {
	return &Adapter{
		cfg:         cfg,
		clientCache: clientcache.NewCache[*genai.Client](),
	}
}

// Name returns the provider tag
func (a *Adapter) Name() models.Provider {
	return models.ProviderGoogle
}

// Invoke sends a non-streaming generate request to Gemini
func (a *Adapter) Invoke(ctx context.Context, params providers.InvokeParams) (*models.NormalizedCompletion, error) {
	client, err := a.client(ctx)
	if err != nil {
		return nil, err
	}

	contents, genConfig := BuildRequest(params)

	startTime := time.Now()
	resp, err := client.Models.GenerateContent(ctx, params.Model, contents, genConfig)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("Gemini request failed after %v - model: %s", duration, params.Model)
		return nil, mapError(err)
	}

	content := extractText(resp)

	completion := &models.NormalizedCompletion{
		ID:   resp.ResponseID,
		Text: content,
	}
	if resp.UsageMetadata != nil {
		completion.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completion.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if completion.PromptTokens == 0 {
		completion.PromptTokens = a.countPromptTokens(ctx, client, params.Model, contents, params.Messages)
	}
	if completion.CompletionTokens == 0 && content != "" {
		completion.CompletionTokens = utils.EstimateTokens(content)
	}

	fiberlog.Infof("Gemini request completed in %v - model: %s, usage: prompt:%d, completion:%d",
		duration, params.Model, completion.PromptTokens, completion.CompletionTokens)
	return completion, nil
}

// BuildRequest translates the generic message list into Gemini's turn format.
// System-role messages accumulate into the system instruction; assistant
// turns map to the "model" role.
func BuildRequest(params providers.InvokeParams) ([]*genai.Content, *genai.GenerateContentConfig) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(params.Messages))

	for _, message := range params.Messages {
		switch message.Role {
		case models.RoleSystem:
			systemParts = append(systemParts, message.Content)
		case models.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: message.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: message.Content}},
			})
		}
	}

	genConfig := &genai.GenerateContentConfig{}
	if params.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*params.Temperature))
	}
	if params.MaxOutputTokens != nil {
		genConfig.MaxOutputTokens = int32(*params.MaxOutputTokens)
	}
	if len(systemParts) > 0 {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	return contents, genConfig
}

// countPromptTokens obtains prompt token counts via Gemini's own counting
// capability, falling back to the local estimator if that call fails too
func (a *Adapter) countPromptTokens(
	ctx context.Context,
	client *genai.Client,
	model string,
	contents []*genai.Content,
	messages []models.ChatMessage,
) int {
	resp, err := client.Models.CountTokens(ctx, model, contents, nil)
	if err != nil {
		fiberlog.Warnf("Gemini CountTokens failed, falling back to estimate - model: %s: %v", model, err)
		return utils.EstimatePromptTokens(messages)
	}
	return int(resp.TotalTokens)
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}

func (a *Adapter) client(ctx context.Context) (*genai.Client, error) {
	if a.cfg.APIKey == "" {
		return nil, models.NewAuthenticationError(providerName, errors.New("API key not configured"))
	}

	return a.clientCache.GetOrCreate(providerName, func() (*genai.Client, error) {
		config := &genai.ClientConfig{
			APIKey:  a.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if a.cfg.TimeoutMs > 0 {
			config.HTTPClient = &http.Client{Timeout: time.Duration(a.cfg.TimeoutMs) * time.Millisecond}
		}
		client, err := genai.NewClient(ctx, config)
		if err != nil {
			return nil, models.NewProviderError(providerName, "failed to create client", err)
		}
		return client, nil
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

	var apierr genai.APIError
	if errors.As(err, &apierr) {
		switch apierr.Code {
		case 401, 403:
			return models.NewAuthenticationError(providerName, err)
		case 404:
			return models.NewProviderError(providerName, "model not available upstream", err)
		case 429:
			return models.NewRateLimitError(providerName, err)
		default:
			if apierr.Code >= 500 {
				return models.NewTransientProviderError(providerName, "upstream service error", err)
			}
			return models.NewProviderError(providerName, "request failed", err)
		}
	}

	return models.NewTransientProviderError(providerName, "request failed", err)
}
