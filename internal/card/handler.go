package card

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/food-voucher/food_voucher/internal/transactions"
)

// Handler exposes card HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a card HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type cardResponse struct {
	ID               string `json:"id"`
	ProfileID        string `json:"profile_id"`
	Number           string `json:"number"`
	Expiry           string `json:"expiry"`
	Status           Status `json:"status"`
	DeviceBound      bool   `json:"device_bound"`
	Currency         string `json:"currency"`
	Allowance        int64  `json:"allowance"`
	Balance          int64  `json:"balance"`
	BalanceDisplay   string `json:"balance_display"`
	SpentThisMonth   int64  `json:"spent_this_month"`
	SpentDisplay     string `json:"spent_display"`
	AllowanceDisplay string `json:"allowance_display"`
}

// ForProfile returns the card issued to a profile.
func (h *Handler) ForProfile(c *fiber.Ctx) error {
	card, err := h.service.ForProfile(c.UserContext(), c.Params("profileId"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.render(c, card)
}

// Lock blocks the card.
func (h *Handler) Lock(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Lock)
}

// Unlock re-enables the card.
func (h *Handler) Unlock(c *fiber.Ctx) error {
	return h.mutate(c, h.service.Unlock)
}

func (h *Handler) mutate(c *fiber.Ctx, op func(context.Context, string) (Card, error)) error {
	card, err := op(c.UserContext(), c.Params("cardId"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.render(c, card)
}

func (h *Handler) render(c *fiber.Ctx, card Card) error {
	balance, err := h.service.Balance(c.UserContext(), card)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(cardResponse{
		ID:               card.ID,
		ProfileID:        card.ProfileID,
		Number:           "•••• •••• •••• " + card.Last4,
		Expiry:           fmt.Sprintf("%02d/%02d", card.ExpiryMonth, card.ExpiryYear%100),
		Status:           card.Status,
		DeviceBound:      card.DeviceBound(),
		Currency:         card.Currency,
		Allowance:        balance.Allowance,
		Balance:          balance.Available,
		BalanceDisplay:   transactions.FormatAmount(balance.Available),
		SpentThisMonth:   balance.SpentThisMonth,
		SpentDisplay:     transactions.FormatAmount(balance.SpentThisMonth),
		AllowanceDisplay: transactions.FormatAmount(balance.Allowance),
	})
}

func toHTTPError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}
