package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/chat"
	"github.com/omnigate/omnigate/internal/services/ledger"
	"github.com/omnigate/omnigate/internal/services/pricing"
	"github.com/omnigate/omnigate/internal/services/providers"
	"github.com/omnigate/omnigate/internal/services/request"
	"github.com/omnigate/omnigate/internal/services/response"
	"github.com/omnigate/omnigate/internal/services/retry"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCatalogYAML = `
gpt-4:
  name: "GPT-4"
  provider: openai
  context_window: 8192
  max_output_tokens: 4096
  pricing:
    input: 0.03
    output: 0.06
`

type scriptedProvider struct {
	completion *models.NormalizedCompletion
	err        error
}

func (p *scriptedProvider) Name() models.Provider { return models.ProviderOpenAI }

func (p *scriptedProvider) Invoke(ctx context.Context, params providers.InvokeParams) (*models.NormalizedCompletion, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.completion, nil
}

func newTestApp(t *testing.T, provider providers.ChatProvider) (*fiber.App, *ledger.Service) {
	t.Helper()

	catalogPath := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalogYAML), 0o600))
	catalog, err := pricing.Load(catalogPath)
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "usage.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ledgerService := ledger.NewService(db)
	require.NoError(t, ledgerService.AutoMigrate())

	reporter := ledger.NewReporter(8)
	t.Cleanup(reporter.Stop)

	orchestrator := chat.NewOrchestrator(
		catalog,
		providers.NewRegistry(provider),
		ledgerService,
		reporter,
		retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, AttemptTimeout: time.Second},
	)

	reqSvc := request.NewService()
	respSvc := response.NewService()

	app := fiber.New()
	completionHandler := NewCompletionHandler(orchestrator, reqSvc, respSvc)
	usageHandler := NewUsageHandler(ledgerService, reqSvc, respSvc)
	modelsHandler := NewModelsHandler(catalog, respSvc)

	v1 := app.Group("/v1")
	v1.Post("/chat/completions", completionHandler.ChatCompletion)
	v1.Get("/models", modelsHandler.ListModels)

	usage := v1.Group("/usage")
	usage.Get("/sessions/:session_id", usageHandler.SessionUsage)
	usage.Get("/daily", usageHandler.DailyUsage)
	usage.Get("/daily/:date", usageHandler.DailyUsage)
	usage.Get("/monthly", usageHandler.MonthlyUsage)
	usage.Get("/monthly/:month", usageHandler.MonthlyUsage)

	return app, ledgerService
}

func happyProvider() *scriptedProvider {
	return &scriptedProvider{
		completion: &models.NormalizedCompletion{
			ID:               "chatcmpl-123",
			Text:             "Hi there!",
			PromptTokens:     10,
			CompletionTokens: 20,
		},
	}
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, app *fiber.App, path string, out any) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	if out != nil {
		decodeBody(t, resp, out)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestChatCompletionEndpoint(t *testing.T) {
	app, _ := newTestApp(t, happyProvider())

	resp := postJSON(t, app, "/v1/chat/completions", fiber.Map{
		"model":      "gpt-4",
		"messages":   []fiber.Map{{"role": "user", "content": "Hello"}},
		"session_id": "session-abc",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.ChatCompletionResponse
	decodeBody(t, resp, &body)
	require.Equal(t, "chatcmpl-123", body.ID)
	require.Equal(t, "gpt-4", body.Model)
	require.Equal(t, models.ProviderOpenAI, body.Provider)
	require.Equal(t, 30, body.Usage.TotalTokens)
	require.InDelta(t, 0.0015, body.Cost.TotalCost, 1e-12)
}

func TestChatCompletionValidation(t *testing.T) {
	app, _ := newTestApp(t, happyProvider())

	tests := []struct {
		name       string
		body       fiber.Map
		wantStatus int
		wantType   string
	}{
		{
			name:       "missing model",
			body:       fiber.Map{"messages": []fiber.Map{{"role": "user", "content": "Hello"}}},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name:       "no messages",
			body:       fiber.Map{"model": "gpt-4"},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name: "streaming not supported",
			body: fiber.Map{
				"model":    "gpt-4",
				"messages": []fiber.Map{{"role": "user", "content": "Hello"}},
				"stream":   true,
			},
			wantStatus: http.StatusBadRequest,
			wantType:   "validation",
		},
		{
			name: "unknown model",
			body: fiber.Map{
				"model":    "llama-70b",
				"messages": []fiber.Map{{"role": "user", "content": "Hello"}},
			},
			wantStatus: http.StatusNotFound,
			wantType:   "unsupported_model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, app, "/v1/chat/completions", tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			var body response.ErrorResponse
			decodeBody(t, resp, &body)
			require.Equal(t, tt.wantType, body.Error.Type)
			require.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestChatCompletionProviderErrorSanitized(t *testing.T) {
	app, _ := newTestApp(t, &scriptedProvider{
		err: models.NewAuthenticationError("openai", io.ErrUnexpectedEOF),
	})

	resp := postJSON(t, app, "/v1/chat/completions", fiber.Map{
		"model":    "gpt-4",
		"messages": []fiber.Map{{"role": "user", "content": "Hello"}},
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// The wrapped cause never reaches the wire.
	require.NotContains(t, string(data), "unexpected EOF")

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	require.Equal(t, "authentication", body.Error.Type)
}

func TestUsageEndpoints(t *testing.T) {
	app, ledgerService := newTestApp(t, happyProvider())

	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	_, err := ledgerService.Record(context.Background(), models.RecordUsageParams{
		SessionID:        "session-abc",
		UserID:           "user-1",
		ModelID:          "gpt-4",
		Provider:         models.ProviderOpenAI,
		PromptTokens:     10,
		CompletionTokens: 20,
		Cost:             0.0015,
		At:               at,
	})
	require.NoError(t, err)

	// A second record lands on the current day so the period-less
	// daily and monthly endpoints have something to report.
	_, err = ledgerService.Record(context.Background(), models.RecordUsageParams{
		SessionID:        "session-today",
		UserID:           "user-1",
		ModelID:          "gpt-4",
		Provider:         models.ProviderOpenAI,
		PromptTokens:     5,
		CompletionTokens: 5,
		Cost:             0.00045,
		At:               time.Now().UTC(),
	})
	require.NoError(t, err)

	t.Run("session", func(t *testing.T) {
		var body models.SessionUsageSummary
		resp := getJSON(t, app, "/v1/usage/sessions/session-abc", &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, body.Records, 1)
		require.Equal(t, 30, body.Totals.TotalTokens)
	})

	t.Run("session empty", func(t *testing.T) {
		var body models.SessionUsageSummary
		resp := getJSON(t, app, "/v1/usage/sessions/session-unknown", &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Empty(t, body.Records)
	})

	t.Run("daily", func(t *testing.T) {
		var body models.DailyUsageReport
		resp := getJSON(t, app, "/v1/usage/daily/2026-03-15", &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, body.Rows, 1)
		require.Equal(t, int64(1), body.Totals.RequestCount)
	})

	t.Run("daily filtered out", func(t *testing.T) {
		var body models.DailyUsageReport
		resp := getJSON(t, app, "/v1/usage/daily/2026-03-15?provider=anthropic", &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Empty(t, body.Rows)
	})

	t.Run("daily bad date", func(t *testing.T) {
		resp := getJSON(t, app, "/v1/usage/daily/15-03-2026", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("daily defaults to today", func(t *testing.T) {
		var body models.DailyUsageReport
		resp := getJSON(t, app, "/v1/usage/daily", &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, time.Now().UTC().Format(models.DateLayout), body.Date)
		require.Equal(t, int64(10), body.Totals.TotalTokens)
	})

	t.Run("daily range", func(t *testing.T) {
		resp := getJSON(t, app, "/v1/usage/daily?start_date=2026-03-14&end_date=2026-03-16", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("monthly", func(t *testing.T) {
		var body models.MonthlyUsageReport
		resp := getJSON(t, app, "/v1/usage/monthly/2026-03", &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, int64(30), body.Totals.TotalTokens)
	})

	t.Run("monthly defaults to current month", func(t *testing.T) {
		var body models.MonthlyUsageReport
		resp := getJSON(t, app, "/v1/usage/monthly", &body)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, time.Now().UTC().Format(models.YearMonthLayout), body.YearMonth)
		require.Equal(t, int64(10), body.Totals.TotalTokens)
	})
}

func TestListModelsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, happyProvider())

	var body struct {
		Models []struct {
			ModelID  string          `json:"model_id"`
			Provider models.Provider `json:"provider"`
		} `json:"models"`
		Count int `json:"count"`
	}
	resp := getJSON(t, app, "/v1/models", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, body.Count)
	require.Equal(t, "gpt-4", body.Models[0].ModelID)
	require.Equal(t, models.ProviderOpenAI, body.Models[0].Provider)
}
