package runner

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"autorunner/internal/logger"
)

// Starter is what the HTTP layer needs from the runner: schedule and
// forget.
type Starter interface {
	Enqueue(ctx context.Context, jobID string) error
}

type Handler struct {
	log    *logger.Logger
	runner Starter
}

func NewHandler(runner Starter) *Handler {
	return &Handler{log: logger.New("RunnerHandler"), runner: runner}
}

type StartRequest struct {
	JobID string `json:"jobId"`
}

// HandleStart acknowledges with "queued" before the job runs; callers
// observe progress through the job row, not this endpoint.
func (h *Handler) HandleStart(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.JobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "jobId is required"})
	}
	if err := h.runner.Enqueue(c.Context(), req.JobID); err != nil {
		h.log.LogErrorf("failed to enqueue job %s: %v", req.JobID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to queue job"})
	}
	return c.JSON(fiber.Map{"status": "queued", "jobId": req.JobID})
}
