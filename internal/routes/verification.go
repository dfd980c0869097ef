package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/food-voucher/food_voucher/internal/onboarding"
)

// RegisterVerificationRoutes wires the verification run endpoints. Starting
// a run passes through rateLimiter.
func RegisterVerificationRoutes(r fiber.Router, h *onboarding.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/verifications")
	if rateLimiter != nil {
		group.Post("/", rateLimiter, h.Start)
	} else {
		group.Post("/", h.Start)
	}
	group.Get("/:runId", h.Status)
	group.Delete("/:runId", h.Cancel)
	group.Post("/:runId/restart", h.Restart)
}
