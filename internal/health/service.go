package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"autorunner/internal/logger"
	"autorunner/internal/platform/redis"
)

type HealthHandler struct {
	log          *logger.Logger
	redisService *redis.Service
	startTime    time.Time
	isReady      bool
}

func NewHealthHandler(redisSvc *redis.Service) *HealthHandler {
	return &HealthHandler{
		log:          logger.New("HealthCheck"),
		redisService: redisSvc,
		startTime:    time.Now(),
	}
}

// SetReady marks the application as ready to receive traffic.
func (h *HealthHandler) SetReady() {
	h.isReady = true
	h.log.LogSuccessf("Application marked as ready for traffic after %v", time.Since(h.startTime))
}

type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type OverallHealth struct {
	Status        string                     `json:"status"`
	Timestamp     string                     `json:"timestamp"`
	Ready         bool                       `json:"ready"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentStatus `json:"components,omitempty"`
}

// HandleHealth reports liveness plus the queue backend's health. It has
// no job side effects.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	allOk := true
	statuses := make(map[string]ComponentStatus)
	if h.redisService != nil {
		status := ComponentStatus{Status: "ok"}
		if err := h.redisService.HealthCheck(ctx); err != nil {
			status = ComponentStatus{Status: "error", Error: err.Error()}
			allOk = false
			h.log.LogErrorf("redis health check failed: %v", err)
		}
		statuses["redis"] = status
	}

	response := OverallHealth{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Ready:         h.isReady,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    statuses,
	}

	if allOk && h.isReady {
		response.Status = "ok"
		return c.Status(http.StatusOK).JSON(response)
	}
	if !h.isReady {
		response.Status = "starting"
		return c.Status(http.StatusServiceUnavailable).JSON(response)
	}
	response.Status = "error"
	return c.Status(http.StatusServiceUnavailable).JSON(response)
}

func Limiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{"error": "Rate limit exceeded"})
		},
	})
}
