package session

import (
	"time"

	"github.com/food-voucher/food_voucher/internal/verification"
)

// Status tracks where a profile is in onboarding.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerifying Status = "verifying"
	StatusVerified  Status = "verified"
	StatusFailed    Status = "failed"
)

// Trust is the trust level shown on a profile. New profiles have not
// completed a verification yet.
type Trust string

const (
	TrustNew    Trust = "new"
	TrustLow    Trust = "low"
	TrustMedium Trust = "medium"
	TrustHigh   Trust = "high"
)

// AlertLevel drives the security banner on the profile screen.
type AlertLevel string

const (
	AlertNormal  AlertLevel = "normal"
	AlertWarning AlertLevel = "warning"
)

// Profile is the beneficiary record folded from verification results.
type Profile struct {
	ID             string
	Phone          string
	MaskedPhone    string
	Status         Status
	Trust          Trust
	Security       verification.SecurityProfile
	Alert          AlertLevel
	Failure        verification.FailureKind
	JoinedAt       time.Time
	LastVerifiedAt *time.Time
	UpdatedAt      time.Time
}
