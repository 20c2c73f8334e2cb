package api

import (
	"github.com/omnigate/omnigate/internal/models"
	"github.com/omnigate/omnigate/internal/services/pricing"
	"github.com/omnigate/omnigate/internal/services/response"

	"github.com/gofiber/fiber/v2"
)

// ModelsHandler lists the models the catalog can route
type ModelsHandler struct {
	catalog *pricing.Catalog
	respSvc *response.Service
}

func NewModelsHandler(catalog *pricing.Catalog, respSvc *response.Service) *ModelsHandler {
	return &ModelsHandler{catalog: catalog, respSvc: respSvc}
}

type modelInfo struct {
	ModelID         string              `json:"model_id"`
	DisplayName     string              `json:"display_name"`
	Provider        models.Provider     `json:"provider"`
	ContextWindow   int                 `json:"context_window"`
	MaxOutputTokens int                 `json:"max_output_tokens"`
	Pricing         models.ModelPricing `json:"pricing"`
}

// ListModels handles GET /v1/models
func (h *ModelsHandler) ListModels(c *fiber.Ctx) error {
	entries := h.catalog.Entries()

	infos := make([]modelInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, modelInfo{
			ModelID:         entry.ModelID,
			DisplayName:     entry.DisplayName,
			Provider:        entry.Provider,
			ContextWindow:   entry.ContextWindow,
			MaxOutputTokens: entry.MaxOutputTokens,
			Pricing:         entry.Pricing,
		})
	}

	return h.respSvc.Success(c, fiber.Map{
		"models": infos,
		"count":  len(infos),
	})
}
