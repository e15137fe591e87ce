package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool  Pinger
	extra map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler with the given database pool.
func NewHealthHandler(pool Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, extra: map[string]Pinger{}}
}

// WithDependency adds a named optional dependency to the report. A failing
// dependency marks the service degraded but keeps it serving.
func (h *HealthHandler) WithDependency(name string, p Pinger) *HealthHandler {
	h.extra[name] = p
	return h
}

// Check performs a health check by pinging the database.
// Returns 200 OK with {"status": "healthy"} when database is reachable.
// Returns 503 Service Unavailable with {"status": "unhealthy", "error": "..."} when database is unreachable.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.pool.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}

	status := "healthy"
	deps := fiber.Map{}
	for name, p := range h.extra {
		if err := p.Ping(c.Context()); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("health check: dependency unreachable")
			deps[name] = "unreachable"
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	resp := fiber.Map{"status": status}
	if len(deps) > 0 {
		resp["dependencies"] = deps
	}
	return c.JSON(resp)
}
