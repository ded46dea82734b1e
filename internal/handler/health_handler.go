package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is satisfied by anything whose liveness can be probed
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

type HealthHandler struct {
	checks           map[string]Pinger
	advisoryFailures func() int64
}

// NewHealthHandler creates a health handler. checks are probed by Ready;
// a nil map makes Ready always succeed.
func NewHealthHandler(checks map[string]Pinger, advisoryFailures func() int64) *HealthHandler {
	return &HealthHandler{
		checks:           checks,
		advisoryFailures: advisoryFailures,
	}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "ok",
		"service": "clicker-service",
	})
}

// Ready returns readiness status
// GET /ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	ready := true
	checks := fiber.Map{}
	for name, check := range h.checks {
		if err := check.PingContext(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	body := fiber.Map{
		"status": "ready",
		"checks": checks,
	}
	if h.advisoryFailures != nil {
		body["advisoryFailures"] = h.advisoryFailures()
	}

	if !ready {
		body["status"] = "not ready"
		return c.Status(fiber.StatusServiceUnavailable).JSON(body)
	}

	return c.Status(fiber.StatusOK).JSON(body)
}
