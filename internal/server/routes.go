package server

import (
	"github.com/gofiber/fiber/v2"

	"autorunner/internal/core/runner"
	"autorunner/internal/health"
	"autorunner/internal/platform/redis"
)

type Dependencies struct {
	Runner    runner.Starter
	Redis     *redis.Service
	AuthToken string
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/health", health.Limiter(), healthHandler.HandleHealth)

	startHandler := runner.NewHandler(d.Runner)
	app.Post("/jobs/start", BearerAuth(d.AuthToken), startHandler.HandleStart)

	return healthHandler
}
