package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/joho/godotenv"

	"github.com/fited/stocktrack/internal/config"
	"github.com/fited/stocktrack/internal/database"
	"github.com/fited/stocktrack/internal/handlers"
	"github.com/fited/stocktrack/internal/middleware"
	"github.com/fited/stocktrack/internal/services"
	"github.com/fited/stocktrack/internal/types"

	_ "github.com/fited/stocktrack/docs/api" // Swagger docs
)

// @title Stocktrack API
// @version 1.0.0
// @description Filament inventory service with OTP email login
// @contact.name API Support
// @contact.email info@fited.co

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load .env when present, real environment wins
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to the inventory database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to inventory database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations and seed the five stock rows at zero
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.SeedStock(db); err != nil {
		log.Fatalf("Failed to seed stock rows: %v", err)
	}

	// Open the local settings database
	settingsDB, err := database.ConnectSettings(cfg)
	if err != nil {
		log.Fatalf("Failed to open settings database: %v", err)
	}
	defer database.Close(settingsDB)

	// Wire services explicitly; no package-level singletons
	provider := services.NewAuthorizerProvider(cfg)
	sessions := services.NewSessionManager(provider, cfg.AuthEmailDomain,
		time.Duration(cfg.AuthChallengeTTLMin)*time.Minute)

	var alerts services.AlertProvider = &services.NoOpProvider{}
	if cfg.AlertWebhookURL != "" {
		alerts = services.NewWebhookProvider(cfg.AlertWebhookURL)
	}
	notifier := services.NewNotifier(alerts)

	settings := services.NewSettingsService(settingsDB)
	gateway := services.NewGormGateway(db)
	stock := services.NewStockService(gateway, notifier, settings, cfg.LogFetchLimit)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("stocktrack")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Liveness
	app.Get("/healthz", func(c *fiber.Ctx) error {
		result := services.HealthCheck(cfg, db)
		status := fiber.StatusOK
		if result.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	authHandler := &handlers.AuthHandler{Sessions: sessions}
	stockHandler := &handlers.StockHandler{Service: stock, Settings: settings}
	settingsHandler := &handlers.SettingsHandler{Settings: settings}

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.Post("/code", authHandler.SendCode)
	auth.Post("/verify", authHandler.VerifyCode)
	auth.Get("/session", authHandler.GetSession)
	auth.Post("/signout", authHandler.SignOut)

	// Inventory routes (authenticated)
	authed := middleware.Auth(provider)
	api.Get("/stock", authed, stockHandler.GetStock)
	api.Get("/stock/log", authed, stockHandler.GetLog)
	api.Post("/stock/:material/add", authed, stockHandler.AddStock)
	api.Post("/stock/:material/subtract", authed, stockHandler.SubtractStock)

	// Local settings routes (authenticated)
	api.Get("/settings/thresholds", authed, settingsHandler.GetThresholds)
	api.Post("/settings/thresholds", authed, settingsHandler.SetThresholds)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if e, ok := err.(*types.CustomError); ok {
		code = e.Code
		message = e.Message
		errorType = e.Type
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    code,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}
