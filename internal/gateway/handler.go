package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/food-voucher/food_voucher/internal/validation"
)

// Handler exposes the provider operations over HTTP for client-side checks
// and manual testing.
type Handler struct {
	provider    Provider
	validate    *validation.Validator
	countryCode string
}

// NewHandler constructs a gateway handler. countryCode is prefixed to numbers
// given without one.
func NewHandler(provider Provider, validate *validation.Validator, countryCode string) *Handler {
	return &Handler{provider: provider, validate: validate, countryCode: countryCode}
}

// PhoneRequest names the number to check.
type PhoneRequest struct {
	Phone string `json:"phone" validate:"required,phone,max=20"`
}

// RealTimeRequestBody describes a payment to screen.
type RealTimeRequestBody struct {
	Phone    string `json:"phone" validate:"required,phone,max=20"`
	Amount   int64  `json:"amount" validate:"gte=0"`
	Location string `json:"location" validate:"max=120"`
}

// VerifyNumber answers a number verification.
func (h *Handler) VerifyNumber(c *fiber.Ctx) error {
	var req PhoneRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := h.provider.VerifyNumber(c.UserContext(), h.msisdn(req.Phone))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(res)
}

// CheckSIMSwap answers a SIM swap check.
func (h *Handler) CheckSIMSwap(c *fiber.Ctx) error {
	var req PhoneRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := h.provider.CheckSIMSwap(c.UserContext(), h.msisdn(req.Phone))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(res)
}

// RealTime screens a payment.
func (h *Handler) RealTime(c *fiber.Ctx) error {
	var req RealTimeRequestBody
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := h.provider.RealTimeVerification(c.UserContext(), RealTimeRequest{
		Phone:    h.msisdn(req.Phone),
		Amount:   req.Amount,
		Location: req.Location,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(res)
}

func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func (h *Handler) msisdn(phone string) string {
	var digits []rune
	for _, r := range phone {
		if r != ' ' {
			digits = append(digits, r)
		}
	}
	if len(digits) > 0 && digits[0] == '+' {
		return string(digits)
	}
	return h.countryCode + string(digits)
}

func toHTTPError(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.NewError(http.StatusGatewayTimeout, err.Error())
	}
	return fiber.NewError(http.StatusBadGateway, err.Error())
}
