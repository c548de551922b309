package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gradeflow-go-api/internal/config"
	"github.com/noah-isme/gradeflow-go-api/internal/handler"
	"github.com/noah-isme/gradeflow-go-api/internal/middleware"
	"github.com/noah-isme/gradeflow-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	BatchHandler        *handler.BatchHandler
	SubmissionHandler   *handler.SubmissionHandler
	GradingItemsHandler *handler.GradingItemsHandler
	ScoreStatsHandler   *handler.ScoreStatsHandler
	ReportHandler       *handler.ReportHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	teacherOnly := middleware.RequireRole("teacher", "admin")

	if deps.BatchHandler != nil {
		batches := api.Group("/batches", jwtMiddleware, teacherOnly)
		deps.BatchHandler.Register(batches)
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware, teacherOnly)
		deps.SubmissionHandler.Register(submissions)
	}

	if deps.GradingItemsHandler != nil {
		items := api.Group("/grading-items", jwtMiddleware, teacherOnly)
		deps.GradingItemsHandler.Register(items)
	}

	if deps.ScoreStatsHandler != nil {
		assessments := api.Group("/assessments", jwtMiddleware, teacherOnly)
		deps.ScoreStatsHandler.Register(assessments)
	}

	if deps.ReportHandler != nil {
		reports := api.Group("/reports", jwtMiddleware, teacherOnly,
			middleware.RateLimit("reports", 10, time.Minute))
		deps.ReportHandler.Register(reports)
	}
}
