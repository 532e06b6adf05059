package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taxdesk/internal/api"
	"taxdesk/internal/api/handlers"
	"taxdesk/internal/repository"
	"taxdesk/internal/service"
	"taxdesk/pkg/auth"
	"taxdesk/pkg/config"
	"taxdesk/pkg/logger"
	"taxdesk/pkg/postgres"

	"go.uber.org/zap"
)

// @title TaxDesk API
// @version 1.0
// @description Tax document ingestion and extraction service

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting TaxDesk service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	taxRepo := repository.NewTaxRepository(db, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)

	rasterService := service.NewRasterService(&cfg.Raster, cfg.Upload.Dir, appLogger)
	ocrService := service.NewOCRService(&cfg.OCR, appLogger)
	textService := service.NewTextService(rasterService, ocrService, appLogger)
	parserService := service.NewParserService(appLogger)

	taxService := service.NewTaxService(taxRepo, textService, parserService, cfg.Upload.Dir, appLogger)

	assistantService := service.NewAssistantService(taxRepo, &cfg.Assistant, appLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, appLogger)
	taxHandler := handlers.NewTaxHandler(taxService, appLogger)
	assistantHandler := handlers.NewAssistantHandler(assistantService, authService, appLogger)

	// Setup router
	app := api.SetupRouter(authHandler, taxHandler, assistantHandler, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
