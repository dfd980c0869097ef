package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/food-voucher/food_voucher/internal/card"
	"github.com/food-voucher/food_voucher/internal/session"
	"github.com/food-voucher/food_voucher/internal/transactions"
)

// RegisterProfileRoutes wires profile, card and history endpoints.
func RegisterProfileRoutes(r fiber.Router, profiles *session.Handler, cards *card.Handler, history *transactions.Handler) {
	r.Get("/profiles/:profileId", profiles.Get)
	r.Get("/profiles/:profileId/card", cards.ForProfile)
	r.Post("/cards/:cardId/lock", cards.Lock)
	r.Post("/cards/:cardId/unlock", cards.Unlock)
	r.Get("/cards/:cardId/transactions", history.List)
}
