package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradeflow-go-api/internal/config"
	"github.com/noah-isme/gradeflow-go-api/internal/database"
	"github.com/noah-isme/gradeflow-go-api/internal/events"
	"github.com/noah-isme/gradeflow-go-api/internal/handler"
	"github.com/noah-isme/gradeflow-go-api/internal/middleware"
	"github.com/noah-isme/gradeflow-go-api/internal/repository"
	"github.com/noah-isme/gradeflow-go-api/internal/router"
	"github.com/noah-isme/gradeflow-go-api/internal/service"
	"github.com/noah-isme/gradeflow-go-api/internal/tracking"
	"github.com/noah-isme/gradeflow-go-api/pkg/gradingapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := events.Connect(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	backend, err := gradingapi.New(gradingapi.Config{
		BaseURL:        cfg.BackendBaseURL,
		APIToken:       cfg.BackendAPIToken,
		Timeout:        cfg.BackendTimeout,
		StrictPayloads: cfg.BackendStrictPayloads,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("failed to create grading backend client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	tracker := service.NewBatchTracker(logger)
	store := tracking.NewStore()
	publisher := events.NewPublisher(natsConn, events.DefaultSubject, logger)

	batchService := service.NewBatchUploadService(tracker, store, backend, backend, validate, publisher, service.BatchUploadConfig{
		MaxFileSizeMB:     cfg.UploadMaxFileSizeMB,
		UploadConcurrency: cfg.UploadConcurrency,
		Poller: service.PollerConfig{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
			Concurrency: cfg.PollConcurrency,
		},
	}, logger)
	defer batchService.Shutdown()

	itemsService := service.NewGradingItemsService(backend, redisClient, cfg.ItemsCacheTTL, logger)
	statsService := service.NewScoreStatsService(backend, redisClient, cfg.StatsCacheTTL, logger)
	reportRepo := repository.NewReportRepository(db)
	reportService := service.NewReportService(backend, reportRepo, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxFileSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		BatchHandler:        handler.NewBatchHandler(batchService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(batchService, logger),
		GradingItemsHandler: handler.NewGradingItemsHandler(itemsService, logger),
		ScoreStatsHandler:   handler.NewScoreStatsHandler(statsService, logger),
		ReportHandler:       handler.NewReportHandler(reportService, logger),
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
