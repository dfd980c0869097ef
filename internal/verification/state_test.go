package verification

import (
	"errors"
	"testing"
)

func mustTransition(t *testing.T, s State, e Event) State {
	t.Helper()
	next, err := Transition(s, e)
	if err != nil {
		t.Fatalf("transition %T from %s: %v", e, s.Phase, err)
	}
	return next
}

func TestTransitionHappyPath(t *testing.T) {
	s := NewState("start")
	s = mustTransition(t, s, Submitted{Phone: "612345678"})
	s = mustTransition(t, s, StepStarted{Step: StepPhoneCheck, Progress: 50})
	s = mustTransition(t, s, StepCompleted{Step: StepPhoneCheck, Verdict: PhoneVerdict{Verified: true}})
	s = mustTransition(t, s, StepStarted{Step: StepSIMCheck, Progress: 100})
	s = mustTransition(t, s, StepCompleted{Step: StepSIMCheck, Verdict: SIMSwapVerdict{Result: SIMSwapSecure}})
	s = mustTransition(t, s, Completed{Message: "done"})

	if s.Phase != PhaseComplete || s.Progress != 100 {
		t.Fatalf("unexpected final state %+v", s)
	}
	res, err := ResultOf(s)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !res.Verified || res.TrustLevel != TrustHigh || res.SecurityProfile.SIMSwapRisk {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTransitionRiskRequiresBiometric(t *testing.T) {
	s := NewState("")
	s = mustTransition(t, s, Submitted{Phone: "612345678"})
	s = mustTransition(t, s, StepStarted{Step: StepPhoneCheck, Progress: 33})
	s = mustTransition(t, s, StepCompleted{Step: StepPhoneCheck, Verdict: PhoneVerdict{Verified: true}})
	s = mustTransition(t, s, StepStarted{Step: StepSIMCheck, Progress: 67})
	s = mustTransition(t, s, StepCompleted{Step: StepSIMCheck, Verdict: SIMSwapVerdict{Result: SIMSwapRiskDetected}})

	if !s.RequiresBiometric || s.TrustLevel != TrustMedium {
		t.Fatalf("risk not recorded: %+v", s)
	}
	if _, err := Transition(s, Completed{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected completion to require biometric, got %v", err)
	}

	s = mustTransition(t, s, StepStarted{Step: StepBiometric, Progress: 100})
	s = mustTransition(t, s, StepCompleted{Step: StepBiometric, Verdict: BiometricVerdict{}})
	s = mustTransition(t, s, Completed{})
	res, err := ResultOf(s)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if !res.SecurityProfile.SIMSwapRisk || res.TrustLevel != TrustMedium {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTransitionRejections(t *testing.T) {
	initial := NewState("")
	running := mustTransition(t, initial, StepStarted{Step: StepPhoneCheck, Progress: 50})
	secure := mustTransition(t, running, StepCompleted{Step: StepPhoneCheck, Verdict: PhoneVerdict{Verified: true}})
	secure = mustTransition(t, secure, StepStarted{Step: StepSIMCheck, Progress: 100})
	done := mustTransition(t, secure, Completed{})

	cases := []struct {
		name  string
		state State
		event Event
	}{
		{"complete from initial", initial, Completed{}},
		{"fail from initial", initial, Failed{Kind: FailureServiceUnavailable}},
		{"biometric without risk", secure, StepStarted{Step: StepBiometric, Progress: 100}},
		{"step backwards", secure, StepStarted{Step: StepPhoneCheck, Progress: 100}},
		{"progress decreases", running, StepStarted{Step: StepSIMCheck, Progress: 10}},
		{"progress above 100", running, StepStarted{Step: StepSIMCheck, Progress: 101}},
		{"verdict for other step", running, StepCompleted{Step: StepPhoneCheck, Verdict: SIMSwapVerdict{}}},
		{"verdict for inactive step", running, StepCompleted{Step: StepSIMCheck, Verdict: SIMSwapVerdict{}}},
		{"restart while running", running, Restarted{}},
		{"submit after complete", done, Submitted{Phone: "612345678"}},
		{"reject while running", running, Rejected{Kind: FailureInvalidNumber}},
		{"unknown event", initial, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if next != tc.state {
				t.Fatalf("state changed on rejected transition: %+v", next)
			}
		})
	}
}

func TestRestartFromTerminal(t *testing.T) {
	s := mustTransition(t, NewState(""), Rejected{Kind: FailureInvalidNumber, Message: "bad"})
	if s.Phase != PhaseFailed || s.Failure != FailureInvalidNumber {
		t.Fatalf("unexpected state %+v", s)
	}
	s = mustTransition(t, s, Restarted{Message: "again"})
	if s != NewState("again") {
		t.Fatalf("restart did not reset state: %+v", s)
	}
}

func TestResultOfRequiresComplete(t *testing.T) {
	if _, err := ResultOf(NewState("")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected error for initial state, got %v", err)
	}
}

func TestProgressAt(t *testing.T) {
	steps := DefaultSteps(0, 0, 0)
	secure := State{}
	risky := State{RequiresBiometric: true}

	if got := progressAt(steps, secure, 0); got != 50 {
		t.Fatalf("phone check progress = %d, want 50", got)
	}
	if got := progressAt(steps, secure, 1); got != 100 {
		t.Fatalf("sim check progress = %d, want 100", got)
	}
	if got := progressAt(steps, risky, 2); got != 100 {
		t.Fatalf("biometric progress = %d, want 100", got)
	}
	if applicable(steps[2], secure) {
		t.Fatalf("biometric must not apply without risk")
	}
}
