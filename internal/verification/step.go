package verification

import (
	"math"
	"time"

	"github.com/food-voucher/food_voucher/internal/i18n"
)

// StepID identifies a verification step. Running phases share the step ids.
type StepID string

const (
	StepPhoneCheck StepID = "phone_check"
	StepSIMCheck   StepID = "sim_check"
	StepBiometric  StepID = "biometric"
)

// Step is one entry of the static verification sequence.
type Step struct {
	ID StepID
	// Name and Description are message keys resolved per attempt locale.
	Name        string
	Description string
	Duration    time.Duration
	// Conditional steps only run once an earlier step raised the risk flag.
	Conditional bool
}

// DefaultSteps returns the ordered sequence: number verification, SIM swap
// detection, and biometric confirmation when the SIM check reports risk.
func DefaultSteps(phone, sim, biometric time.Duration) []Step {
	return []Step{
		newStep(StepPhoneCheck, phone, false),
		newStep(StepSIMCheck, sim, false),
		newStep(StepBiometric, biometric, true),
	}
}

func newStep(id StepID, d time.Duration, conditional bool) Step {
	return Step{
		ID:          id,
		Name:        i18n.StepNameKey(string(id)),
		Description: i18n.StepDescriptionKey(string(id)),
		Duration:    d,
		Conditional: conditional,
	}
}

func applicable(step Step, s State) bool {
	return !step.Conditional || s.RequiresBiometric
}

// progressAt returns the percentage reached when steps[idx] becomes active:
// applicable steps up to and including idx over all applicable steps.
func progressAt(steps []Step, s State, idx int) int {
	total, done := 0, 0
	for i, step := range steps {
		if !applicable(step, s) {
			continue
		}
		total++
		if i <= idx {
			done++
		}
	}
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}
