package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"

	"github.com/hackollab/core/internal/adapter/ai"
	"github.com/hackollab/core/internal/adapter/github"
	"github.com/hackollab/core/internal/adapter/store"
	"github.com/hackollab/core/internal/handler"
	"github.com/hackollab/core/internal/middleware"
	"github.com/hackollab/core/internal/service"
	"github.com/hackollab/core/pkg/config"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Hackollab Core",
		"port", cfg.Port,
		"gemini_model", cfg.GeminiModel,
		"embedding_dimension", cfg.EmbeddingDimension,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	vectorStore := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)

	// ── Adapters ─────────────────────────────────────────────────────────
	gemini := ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.EmbeddingDimension)
	githubClient := github.NewClient(cfg.GitHubAPIURL)

	// ── Services ─────────────────────────────────────────────────────────
	ingestService := service.NewIngestService(pgStore, githubClient, gemini, vectorStore, service.IngestConfig{
		FileCap:          cfg.IngestFileCap,
		PacingDelay:      cfg.IngestPacingDelay,
		BreakerThreshold: cfg.IngestBreakerThreshold,
	})
	syncService := service.NewSyncService(pgStore, pgStore, githubClient, gemini)
	queryService := service.NewQueryService(gemini, vectorStore, gemini.Dimension())

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	jobTracker := handler.NewJobTracker()

	projectHandler := handler.NewProjectHandler(pgStore, ingestService, jobTracker)
	projectHandler.Register(api)

	commitHandler := handler.NewCommitHandler(syncService, pgStore)
	commitHandler.Register(api)

	askHandler := handler.NewAskHandler(queryService)
	askHandler.Register(api)

	jobsHandler := handler.NewJobsHandler(jobTracker)
	jobsHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
