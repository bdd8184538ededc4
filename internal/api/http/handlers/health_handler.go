package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-enrichment/internal/observability"
	"github.com/spec-kit/ticket-enrichment/internal/queue"
)

// Pinger is a dependency that can report its connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueInspector reports enrichment queue depth.
type QueueInspector interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// HealthDependencies bundles what the probes inspect. Nil entries are skipped.
type HealthDependencies struct {
	ServiceName string
	Version     string
	Checks      map[string]Pinger
	Queue       QueueInspector
	Metrics     *observability.Metrics
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	deps HealthDependencies
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// Show handles GET /health.
func (h *HealthHandler) Show(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.deps.ServiceName,
		"version": h.deps.Version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps.Checks))
	for name, check := range h.deps.Checks {
		if check != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	depStatus := fiber.Map{}
	ready := true
	for _, name := range names {
		if err := h.deps.Checks[name].Ping(ctx); err != nil {
			depStatus[name] = err.Error()
			ready = false
			continue
		}
		depStatus[name] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Metrics exposes in-process counters and queue depth.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	resp := fiber.Map{"metrics": h.deps.Metrics.Snapshot()}
	if h.deps.Queue != nil {
		stats, err := h.deps.Queue.Stats(c.UserContext())
		if err != nil {
			resp["queue_error"] = err.Error()
		} else {
			resp["queue"] = stats
		}
	}
	return c.JSON(resp)
}
