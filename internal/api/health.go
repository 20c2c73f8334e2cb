package api

import (
	"time"

	"github.com/omnigate/omnigate/internal/config"
	"github.com/omnigate/omnigate/internal/services/database"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	cfg *config.Config
	db  *database.DB
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(cfg *config.Config, db *database.DB) *HealthHandler {
	return &HealthHandler{cfg: cfg, db: db}
}

// HealthCheck returns the health status of the service and its dependencies
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	dbStatus := "healthy"
	if err := h.db.Ping(); err != nil {
		dbStatus = "unhealthy"
	}

	providerStatus := make(fiber.Map, len(h.cfg.Providers))
	for name, provider := range h.cfg.Providers {
		if provider.APIKey != "" {
			providerStatus[name] = "configured"
		} else {
			providerStatus[name] = "missing_api_key"
		}
	}

	overallStatus := "healthy"
	statusCode := fiber.StatusOK
	if dbStatus != "healthy" {
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"database":  dbStatus,
			"providers": providerStatus,
		},
	})
}
