package verification

import (
	"errors"
	"fmt"
)

// Phase is the position of an attempt in the verification flow.
type Phase string

const (
	PhaseInitial    Phase = "initial"
	PhasePhoneCheck Phase = "phone_check"
	PhaseSIMCheck   Phase = "sim_check"
	PhaseBiometric  Phase = "biometric"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further step can run in this attempt.
func (p Phase) Terminal() bool { return p == PhaseComplete || p == PhaseFailed }

// Running reports whether a step is active.
func (p Phase) Running() bool {
	return p == PhasePhoneCheck || p == PhaseSIMCheck || p == PhaseBiometric
}

func (p Phase) rank() int {
	switch p {
	case PhaseInitial:
		return 0
	case PhasePhoneCheck:
		return 1
	case PhaseSIMCheck:
		return 2
	case PhaseBiometric:
		return 3
	case PhaseComplete, PhaseFailed:
		return 4
	default:
		return -1
	}
}

// SIMSwapResult is the outcome of the SIM swap step. The zero value means the
// check has not run.
type SIMSwapResult string

const (
	SIMSwapUnset        SIMSwapResult = ""
	SIMSwapSecure       SIMSwapResult = "secure"
	SIMSwapRiskDetected SIMSwapResult = "risk_detected"
)

// TrustLevel is the coarse confidence that the user is who they claim to be.
type TrustLevel string

const (
	TrustUnknown TrustLevel = "unknown"
	TrustLow     TrustLevel = "low"
	TrustMedium  TrustLevel = "medium"
	TrustHigh    TrustLevel = "high"
)

// FailureKind classifies why an attempt ended in PhaseFailed.
type FailureKind string

const (
	FailureNone               FailureKind = ""
	FailureInvalidNumber      FailureKind = "invalid_number"
	FailureDeviceMismatch     FailureKind = "device_mismatch"
	FailureServiceUnavailable FailureKind = "service_unavailable"
)

// State is the mutable record of one attempt. Values are copied on every
// transition; a State handed out is never modified afterwards.
type State struct {
	Phase             Phase         `json:"phase"`
	Phone             string        `json:"phone,omitempty"`
	ActiveStep        StepID        `json:"active_step,omitempty"`
	Progress          int           `json:"progress"`
	PhoneVerified     bool          `json:"phone_verified"`
	SIMSwap           SIMSwapResult `json:"sim_swap_check,omitempty"`
	TrustLevel        TrustLevel    `json:"trust_level"`
	RequiresBiometric bool          `json:"requires_biometric"`
	Failure           FailureKind   `json:"failure,omitempty"`
	Message           string        `json:"message"`
	Detail            string        `json:"detail,omitempty"`
}

// NewState returns the state every attempt starts from.
func NewState(message string) State {
	return State{Phase: PhaseInitial, TrustLevel: TrustUnknown, Message: message}
}

// SecurityProfile summarises the checks behind a Result.
type SecurityProfile struct {
	PhoneVerified bool `json:"phone_verified"`
	SIMSwapRisk   bool `json:"sim_swap_risk"`
}

// Result is emitted once per successful attempt.
type Result struct {
	Verified        bool            `json:"verified"`
	TrustLevel      TrustLevel      `json:"trust_level"`
	SecurityProfile SecurityProfile `json:"security_profile"`
}

// ResultOf derives the Result of a completed attempt.
func ResultOf(s State) (Result, error) {
	if s.Phase != PhaseComplete {
		return Result{}, fmt.Errorf("%w: result requested in phase %s", ErrInvalidTransition, s.Phase)
	}
	return Result{
		Verified:   s.PhoneVerified,
		TrustLevel: s.TrustLevel,
		SecurityProfile: SecurityProfile{
			PhoneVerified: s.PhoneVerified,
			SIMSwapRisk:   s.SIMSwap == SIMSwapRiskDetected,
		},
	}, nil
}

// Event drives a Transition.
type Event interface{ event() }

// Submitted records the phone number of a new attempt.
type Submitted struct{ Phone string }

// Rejected ends an attempt before any step runs.
type Rejected struct {
	Kind    FailureKind
	Message string
}

// StepStarted marks a step active.
type StepStarted struct {
	Step     StepID
	Progress int
	Message  string
	Detail   string
}

// StepCompleted applies the verdict of the active step.
type StepCompleted struct {
	Step    StepID
	Verdict Verdict
}

// Completed closes an attempt after its last applicable step.
type Completed struct {
	Message string
	Detail  string
}

// Failed aborts a running attempt.
type Failed struct {
	Kind    FailureKind
	Message string
}

// Restarted returns a finished attempt to PhaseInitial.
type Restarted struct{ Message string }

func (Submitted) event()     {}
func (Rejected) event()      {}
func (StepStarted) event()   {}
func (StepCompleted) event() {}
func (Completed) event()     {}
func (Failed) event()        {}
func (Restarted) event()     {}

// ErrInvalidTransition is returned when an event is not allowed in the current phase.
var ErrInvalidTransition = errors.New("invalid verification transition")

// Transition computes the state following e. s is never modified.
func Transition(s State, e Event) (State, error) {
	next := s
	switch ev := e.(type) {
	case Submitted:
		if s.Phase != PhaseInitial {
			return s, invalid(s, "submit")
		}
		next.Phone = ev.Phone

	case Rejected:
		if s.Phase != PhaseInitial {
			return s, invalid(s, "reject")
		}
		next.Phase = PhaseFailed
		next.Failure = ev.Kind
		next.Message = ev.Message
		next.Detail = ""

	case StepStarted:
		phase := Phase(ev.Step)
		if phase.rank() <= s.Phase.rank() || !phase.Running() {
			return s, invalid(s, "start "+string(ev.Step))
		}
		if ev.Progress < s.Progress || ev.Progress > 100 {
			return s, fmt.Errorf("%w: progress %d after %d", ErrInvalidTransition, ev.Progress, s.Progress)
		}
		if phase == PhaseBiometric && !s.RequiresBiometric {
			return s, invalid(s, "start biometric without risk")
		}
		next.Phase = phase
		next.ActiveStep = ev.Step
		next.Progress = ev.Progress
		next.Message = ev.Message
		next.Detail = ev.Detail

	case StepCompleted:
		if s.ActiveStep != ev.Step || ev.Verdict == nil || ev.Verdict.step() != ev.Step {
			return s, invalid(s, "complete "+string(ev.Step))
		}
		ev.Verdict.apply(&next)

	case Completed:
		if !s.Phase.Running() {
			return s, invalid(s, "complete")
		}
		if s.RequiresBiometric && s.Phase != PhaseBiometric {
			return s, invalid(s, "complete without biometric")
		}
		next.Phase = PhaseComplete
		next.ActiveStep = ""
		next.Progress = 100
		next.Message = ev.Message
		next.Detail = ev.Detail

	case Failed:
		if !s.Phase.Running() {
			return s, invalid(s, "fail")
		}
		next.Phase = PhaseFailed
		next.ActiveStep = ""
		next.Failure = ev.Kind
		next.Message = ev.Message
		next.Detail = ""

	case Restarted:
		if s.Phase != PhaseInitial && !s.Phase.Terminal() {
			return s, invalid(s, "restart")
		}
		next = NewState(ev.Message)

	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, e)
	}
	return next, nil
}

func invalid(s State, what string) error {
	return fmt.Errorf("%w: cannot %s in phase %s", ErrInvalidTransition, what, s.Phase)
}
