package onboarding

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/food-voucher/food_voucher/internal/validation"
	"github.com/food-voucher/food_voucher/internal/verification"
)

// Handler exposes the verification run endpoints.
type Handler struct {
	service       *Service
	validate      *validation.Validator
	defaultLocale string
}

// NewHandler constructs a verification handler. defaultLocale applies when
// neither the body nor Accept-Language names one.
func NewHandler(service *Service, validate *validation.Validator, defaultLocale string) *Handler {
	return &Handler{service: service, validate: validate, defaultLocale: defaultLocale}
}

// Start begins a verification run.
func (h *Handler) Start(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.Start(c.UserContext(), req.Phone, h.locale(c, req.Locale))
	if err != nil {
		return h.runError(c, snap, err)
	}
	return c.Status(http.StatusAccepted).JSON(snap)
}

// Status returns the latest snapshot of a run.
func (h *Handler) Status(c *fiber.Ctx) error {
	snap, err := h.service.Status(c.UserContext(), c.Params("runId"))
	if err != nil {
		return h.runError(c, snap, err)
	}
	return c.Status(http.StatusOK).JSON(snap)
}

// Cancel abandons a running attempt.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	runID := c.Params("runId")
	if err := h.service.Cancel(c.UserContext(), runID); err != nil {
		return h.runError(c, Snapshot{}, err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"run_id": runID, "cancelled": true})
}

// Restart resets a finished attempt and runs it again.
func (h *Handler) Restart(c *fiber.Ctx) error {
	var req RestartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.service.Restart(c.UserContext(), c.Params("runId"), req.Phone)
	if err != nil {
		return h.runError(c, snap, err)
	}
	return c.Status(http.StatusAccepted).JSON(snap)
}

func (h *Handler) runError(c *fiber.Ctx, snap Snapshot, err error) error {
	switch {
	case errors.Is(err, verification.ErrInvalidPhone), errors.Is(err, verification.ErrDeviceMismatch):
		return c.Status(http.StatusUnprocessableEntity).JSON(RejectionResponse{Error: snap.State.Message, Run: snap})
	case errors.Is(err, ErrRunNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotRunning), errors.Is(err, verification.ErrAlreadyRunning):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) locale(c *fiber.Ctx, requested string) string {
	if requested != "" {
		return requested
	}
	if accepted := c.AcceptsLanguages("es", "en"); accepted != "" && c.Get(fiber.HeaderAcceptLanguage) != "" {
		return strings.ToLower(accepted)
	}
	return h.defaultLocale
}
