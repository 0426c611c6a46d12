package main

import (
	"log"
	"time"

	api "github.com/AveryLor/BiasBreaker-sub000/cmd/api"
	articleUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/article/usecase"
	authdomain "github.com/AveryLor/BiasBreaker-sub000/internal/auth/domain"
	authRepo "github.com/AveryLor/BiasBreaker-sub000/internal/auth/repository"
	"github.com/AveryLor/BiasBreaker-sub000/internal/auth/scheduler"
	authUsecase "github.com/AveryLor/BiasBreaker-sub000/internal/auth/usecase"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/database"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/logger"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/newsapi"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer func() { _ = zl.Sync() }()

	// Initialize database
	db, err := database.Open(cfg)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.SessionRecord{}); err != nil {
		zl.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize repositories (dependency injection)
	sessionRepo := authRepo.NewSessionRepository(db)

	// News backend client shared by every usecase
	backend := newsapi.NewClient(cfg.NewsAPIURL, cfg.NewsAPITimeout, zl)

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(sessionRepo, backend, cfg, zl)
	articleUsecaseInstance := articleUsecase.NewArticleUsecase(backend)

	// Drop expired sessions in the background
	sweeper := scheduler.NewSessionSweeper(authUsecaseInstance, time.Hour, zl)
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, articleUsecaseInstance, cfg, zl)

	// Start server
	zl.Info("server starting", zap.String("port", cfg.Port), zap.String("news_api", cfg.NewsAPIURL))
	if err := handler.Start(":" + cfg.Port); err != nil {
		zl.Fatal("failed to start server", zap.Error(err))
	}
}
