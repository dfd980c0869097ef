package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/food-voucher/food_voucher/internal/verification"
)

// Handler exposes profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a profile HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Response is the API view of a profile.
type Response struct {
	ID               string                       `json:"id"`
	Phone            string                       `json:"phone"`
	Status           Status                       `json:"verification_status"`
	TrustLevel       Trust                        `json:"trust_level"`
	SecurityProfile  verification.SecurityProfile `json:"security_profile"`
	AlertLevel       AlertLevel                   `json:"alert_level"`
	Failure          verification.FailureKind     `json:"failure,omitempty"`
	JoinDate         time.Time                    `json:"join_date"`
	LastVerification *time.Time                   `json:"last_verification,omitempty"`
}

// ToResponse renders a profile for API clients. The full number never leaves
// the service.
func ToResponse(p Profile) Response {
	return Response{
		ID:               p.ID,
		Phone:            p.MaskedPhone,
		Status:           p.Status,
		TrustLevel:       p.Trust,
		SecurityProfile:  p.Security,
		AlertLevel:       p.Alert,
		Failure:          p.Failure,
		JoinDate:         p.JoinedAt,
		LastVerification: p.LastVerifiedAt,
	}
}

// Get returns a profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.service.Get(c.UserContext(), c.Params("profileId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(ToResponse(p))
}
