// Package gateway assembles the configured services into a runnable HTTP
// server.
package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/omnigate/omnigate/internal/api"
	"github.com/omnigate/omnigate/internal/config"
	"github.com/omnigate/omnigate/internal/services/chat"
	"github.com/omnigate/omnigate/internal/services/database"
	"github.com/omnigate/omnigate/internal/services/ledger"
	"github.com/omnigate/omnigate/internal/services/pricing"
	"github.com/omnigate/omnigate/internal/services/providers"
	anthropicprovider "github.com/omnigate/omnigate/internal/services/providers/anthropic"
	googleprovider "github.com/omnigate/omnigate/internal/services/providers/google"
	openaiprovider "github.com/omnigate/omnigate/internal/services/providers/openai"
	"github.com/omnigate/omnigate/internal/services/request"
	"github.com/omnigate/omnigate/internal/services/response"
	"github.com/omnigate/omnigate/internal/services/retry"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	recovermw "github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 30 * time.Second

// Gateway represents a configured server instance
type Gateway struct {
	config   *config.Config
	app      *fiber.App
	db       *database.DB
	reporter *ledger.Reporter
}

func New(cfg *config.Config) *Gateway {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() to create config")
	}
	return &Gateway{config: cfg}
}

// Run starts the server and blocks until shutdown
func (g *Gateway) Run() error {
	if err := g.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(g.config)

	port := g.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	g.app = createFiberApp(g.config)

	db, err := database.New(g.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	g.db = db
	defer func() {
		if err := g.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	catalog, err := pricing.Load(g.config.Catalog)
	if err != nil {
		return fmt.Errorf("failed to load model catalog: %w", err)
	}
	fiberlog.Infof("Model catalog loaded: %d models from %s", catalog.Len(), g.config.Catalog)

	ledgerService := ledger.NewService(g.db.DB)
	if err := ledgerService.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	g.reporter = ledger.NewReporter(256)
	defer g.reporter.Stop()

	registry, err := buildRegistry(g.config)
	if err != nil {
		return err
	}

	orchestrator := chat.NewOrchestrator(
		catalog,
		registry,
		ledgerService,
		g.reporter,
		retry.NewPolicy(g.config.Retry),
	)

	setupMiddleware(g.app, g.config)
	setupRoutes(g.app, g.config, g.db, catalog, orchestrator, ledgerService)

	fiberlog.Infof("Gateway starting on %s (environment: %s)", listenAddr, g.config.Server.Environment)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := g.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- g.app.ShutdownWithTimeout(shutdownTimeout)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

// buildRegistry creates one adapter per configured provider. A provider with
// no configuration block is simply not registered; requests routed to it fail
// with a clear error instead of a missing-key upstream rejection.
func buildRegistry(cfg *config.Config) (*providers.Registry, error) {
	var adapters []providers.ChatProvider

	if providerCfg, ok := cfg.GetProviderConfig("openai"); ok && providerCfg.APIKey != "" {
		adapters = append(adapters, openaiprovider.New(providerCfg))
	}
	if providerCfg, ok := cfg.GetProviderConfig("anthropic"); ok && providerCfg.APIKey != "" {
		adapters = append(adapters, anthropicprovider.New(providerCfg))
	}
	if providerCfg, ok := cfg.GetProviderConfig("google"); ok && providerCfg.APIKey != "" {
		adapters = append(adapters, googleprovider.New(providerCfg))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no providers configured - configure at least one of openai, anthropic, google")
	}

	registry := providers.NewRegistry(adapters...)
	fiberlog.Infof("Registered providers: %v", registry.Providers())
	return registry, nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "OmniGate v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		CaseSensitive:     true,
		ServerHeader:      "OmniGate",
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	isProd := cfg.IsProduction()

	app.Use(recovermw.New(recovermw.Config{
		EnableStackTrace: !isProd,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "1000 requests per minute")
		},
	}))

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	allowedHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization", "User-Agent", "X-Request-ID",
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowHeaders:  strings.Join(allowedHeaders, ", "),
		AllowMethods:  "GET, POST, OPTIONS",
		MaxAge:        86400,
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
	}))
}

func setupRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *database.DB,
	catalog *pricing.Catalog,
	orchestrator *chat.Orchestrator,
	ledgerService *ledger.Service,
) {
	reqSvc := request.NewService()
	respSvc := response.NewService()

	completionHandler := api.NewCompletionHandler(orchestrator, reqSvc, respSvc)
	usageHandler := api.NewUsageHandler(ledgerService, reqSvc, respSvc)
	modelsHandler := api.NewModelsHandler(catalog, respSvc)
	healthHandler := api.NewHealthHandler(cfg, db)

	app.Get("/health", healthHandler.HealthCheck)

	v1 := app.Group("/v1")
	v1.Post("/chat/completions", completionHandler.ChatCompletion)
	v1.Get("/models", modelsHandler.ListModels)

	usage := v1.Group("/usage")
	usage.Get("/sessions/:session_id", usageHandler.SessionUsage)
	usage.Get("/daily", usageHandler.DailyUsage)
	usage.Get("/daily/:date", usageHandler.DailyUsage)
	usage.Get("/monthly", usageHandler.MonthlyUsage)
	usage.Get("/monthly/:month", usageHandler.MonthlyUsage)
}

func setupLogLevel(cfg *config.Config) {
	switch strings.ToLower(strings.TrimSpace(cfg.Server.LogLevel)) {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "", "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", cfg.Server.LogLevel)
	}
}
