package transactions

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes transaction history endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a transactions HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transactionResponse struct {
	ID         string `json:"id"`
	Restaurant string `json:"restaurant"`
	Amount     int64  `json:"amount"`
	Display    string `json:"amount_display"`
	Time       string `json:"time"`
	Verified   bool   `json:"verified"`
}

// List returns the history of a card with its total.
func (h *Handler) List(c *fiber.Ctx) error {
	cardID := c.Params("cardId")
	txs, err := h.service.List(c.UserContext(), cardID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionResponse{
			ID:         tx.ID,
			Restaurant: tx.Restaurant,
			Amount:     tx.Amount,
			Display:    FormatAmount(tx.Amount),
			Time:       tx.When,
			Verified:   tx.Verified,
		})
	}
	total := Total(txs)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"card_id":       cardID,
		"currency":      Currency,
		"transactions":  items,
		"total":         total,
		"total_display": FormatAmount(total),
	})
}
