package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/food-voucher/food_voucher/internal/gateway"
)

// RegisterGatewayRoutes exposes the verification gateway. Real-time payment
// screening is guarded by idempotency when available.
func RegisterGatewayRoutes(r fiber.Router, h *gateway.Handler, idempotency fiber.Handler) {
	group := r.Group("/gateway")
	group.Post("/number-verification", h.VerifyNumber)
	group.Post("/sim-swap", h.CheckSIMSwap)
	if idempotency != nil {
		group.Post("/realtime", idempotency, h.RealTime)
	} else {
		group.Post("/realtime", h.RealTime)
	}
}
