package verification

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/food-voucher/food_voucher/internal/gateway"
	"github.com/food-voucher/food_voucher/internal/i18n"
	"github.com/food-voucher/food_voucher/internal/logging"
)

func testOptions() Options {
	return Options{
		Steps:          DefaultSteps(0, 0, 0),
		MinPhoneLength: 9,
		FailNumber:     "660555444",
		CountryCode:    "+34",
		StepRetries:    1,
	}
}

// scripted answers every step from a fixed SIM outcome and counts calls.
type scripted struct {
	sim   SIMSwapResult
	calls atomic.Int32
	seen  []string
	mu    sync.Mutex
}

func (s *scripted) Execute(_ context.Context, step Step, phone string) (Verdict, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, phone)
	s.mu.Unlock()
	switch step.ID {
	case StepPhoneCheck:
		return PhoneVerdict{Verified: true, Confidence: gateway.ConfidenceHigh}, nil
	case StepSIMCheck:
		return SIMSwapVerdict{Result: s.sim}, nil
	default:
		return BiometricVerdict{}, nil
	}
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) observe(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Phase
	for _, s := range r.states {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}
	return out
}

func newSequencer(exec Executor, opts Options) *Sequencer {
	return NewSequencer(exec, i18n.MustNew("es"), logging.Discard(), opts)
}

func samePhases(got, want []Phase) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRunSecurePath(t *testing.T) {
	exec := &scripted{sim: SIMSwapSecure}
	rec := &recorder{}
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", rec.observe)

	var results []Result
	res, err := attempt.Run(context.Background(), "612 345 678", func(r Result) { results = append(results, r) })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []Phase{PhaseInitial, PhasePhoneCheck, PhaseSIMCheck, PhaseComplete}
	if got := rec.phases(); !samePhases(got, want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	if len(results) != 1 || results[0] != res {
		t.Fatalf("expected exactly one result, got %v", results)
	}
	if !res.Verified || res.TrustLevel != TrustHigh || res.SecurityProfile.SIMSwapRisk {
		t.Fatalf("unexpected result %+v", res)
	}
	if exec.calls.Load() != 2 {
		t.Fatalf("executor called %d times, want 2", exec.calls.Load())
	}
	if exec.seen[0] != "+34612345678" {
		t.Fatalf("executor saw %q", exec.seen[0])
	}
	final := attempt.Snapshot()
	if final.Message != "Verificación Completa" || final.Progress != 100 {
		t.Fatalf("unexpected final state %+v", final)
	}
}

func TestRunRiskAddsBiometric(t *testing.T) {
	exec := &scripted{sim: SIMSwapRiskDetected}
	rec := &recorder{}
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", rec.observe)

	res, err := attempt.Run(context.Background(), "612345678", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []Phase{PhaseInitial, PhasePhoneCheck, PhaseSIMCheck, PhaseBiometric, PhaseComplete}
	if got := rec.phases(); !samePhases(got, want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	if res.TrustLevel != TrustMedium || !res.SecurityProfile.SIMSwapRisk {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunProgressIsMonotonic(t *testing.T) {
	for _, sim := range []SIMSwapResult{SIMSwapSecure, SIMSwapRiskDetected} {
		rec := &recorder{}
		attempt := newSequencer(&scripted{sim: sim}, testOptions()).NewAttempt("es", rec.observe)
		if _, err := attempt.Run(context.Background(), "612345678", nil); err != nil {
			t.Fatalf("run: %v", err)
		}
		last := 0
		for _, s := range rec.states {
			if s.Progress < last {
				t.Fatalf("%s: progress went from %d to %d", sim, last, s.Progress)
			}
			last = s.Progress
		}
		if last != 100 {
			t.Fatalf("%s: final progress %d", sim, last)
		}
	}
}

func TestRunRejectsShortNumber(t *testing.T) {
	exec := &scripted{sim: SIMSwapSecure}
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)

	called := false
	_, err := attempt.Run(context.Background(), "12345", func(Result) { called = true })
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	s := attempt.Snapshot()
	if s.Phase != PhaseFailed || s.Failure != FailureInvalidNumber {
		t.Fatalf("unexpected state %+v", s)
	}
	if exec.calls.Load() != 0 || called {
		t.Fatalf("no step may run for a rejected number")
	}
}

func TestRunRejectsFailNumber(t *testing.T) {
	exec := &scripted{sim: SIMSwapSecure}
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)

	_, err := attempt.Run(context.Background(), "660555444", nil)
	if !errors.Is(err, ErrDeviceMismatch) {
		t.Fatalf("expected ErrDeviceMismatch, got %v", err)
	}
	s := attempt.Snapshot()
	if s.Failure != FailureDeviceMismatch {
		t.Fatalf("unexpected failure %q", s.Failure)
	}
	want := "¡Error de Verificación! El número no coincide con el dispositivo. Por favor, elige otra opción de verificación."
	if s.Message != want {
		t.Fatalf("message = %q", s.Message)
	}
	if exec.calls.Load() != 0 {
		t.Fatalf("executor must not run")
	}
}

func TestRunAlreadyRunningAndRestart(t *testing.T) {
	attempt := newSequencer(&scripted{sim: SIMSwapSecure}, testOptions()).NewAttempt("en", nil)
	if _, err := attempt.Run(context.Background(), "612345678", nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := attempt.Run(context.Background(), "612345678", nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning on finished attempt, got %v", err)
	}
	if err := attempt.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	s := attempt.Snapshot()
	if s.Phase != PhaseInitial || s.Progress != 0 || s.Message != "Security Verification" {
		t.Fatalf("unexpected state after restart %+v", s)
	}
	if _, err := attempt.Run(context.Background(), "612345678", nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestCancelDiscardsRun(t *testing.T) {
	started := make(chan struct{})
	exec := ExecutorFunc(func(ctx context.Context, step Step, _ string) (Verdict, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)

	called := false
	done := make(chan error, 1)
	go func() {
		_, err := attempt.Run(context.Background(), "612345678", func(Result) { called = true })
		done <- err
	}()

	<-started
	if err := attempt.Restart(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected restart to be refused mid-run, got %v", err)
	}
	attempt.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	if called {
		t.Fatal("cancelled run emitted a result")
	}
	if s := attempt.Snapshot(); s.Phase != PhaseInitial || s.Progress != 0 {
		t.Fatalf("cancelled run left state %+v", s)
	}
}

func TestCancelDuringSettleDelay(t *testing.T) {
	opts := testOptions()
	opts.SettleDelay = time.Minute
	rec := &recorder{}
	attempt := newSequencer(&scripted{sim: SIMSwapSecure}, opts).NewAttempt("es", rec.observe)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	called := false
	go func() {
		_, err := attempt.Run(ctx, "612345678", func(Result) { called = true })
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for attempt.Snapshot().Phase != PhaseComplete {
		select {
		case <-deadline:
			t.Fatal("attempt never reached complete")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("result emitted after cancel")
	}
}

func TestStepRetriedThenUnavailable(t *testing.T) {
	var calls atomic.Int32
	exec := ExecutorFunc(func(ctx context.Context, step Step, _ string) (Verdict, error) {
		calls.Add(1)
		return nil, gateway.ErrUnavailable
	})
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)

	_, err := attempt.Run(context.Background(), "612345678", nil)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("executor called %d times, want 2", calls.Load())
	}
	s := attempt.Snapshot()
	if s.Phase != PhaseFailed || s.Failure != FailureServiceUnavailable {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestStepRetrySucceeds(t *testing.T) {
	var calls atomic.Int32
	inner := &scripted{sim: SIMSwapSecure}
	exec := ExecutorFunc(func(ctx context.Context, step Step, phone string) (Verdict, error) {
		if calls.Add(1) == 1 {
			return nil, gateway.ErrUnavailable
		}
		return inner.Execute(ctx, step, phone)
	})
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)
	if _, err := attempt.Run(context.Background(), "612345678", nil); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestStepTimeout(t *testing.T) {
	opts := testOptions()
	opts.StepTimeout = 10 * time.Millisecond
	opts.StepRetries = 0
	exec := ExecutorFunc(func(ctx context.Context, step Step, _ string) (Verdict, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	attempt := newSequencer(exec, opts).NewAttempt("es", nil)
	_, err := attempt.Run(context.Background(), "612345678", nil)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestWrongVerdictFailsRun(t *testing.T) {
	exec := ExecutorFunc(func(context.Context, Step, string) (Verdict, error) {
		return BiometricVerdict{}, nil
	})
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)
	if _, err := attempt.Run(context.Background(), "612345678", nil); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestDelayExecutorRiskProbability(t *testing.T) {
	steps := DefaultSteps(0, 0, 0)
	always := NewDelayExecutor(1, rand.New(rand.NewSource(1)))
	v, err := always.Execute(context.Background(), steps[1], "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if v.(SIMSwapVerdict).Result != SIMSwapRiskDetected {
		t.Fatalf("probability 1 must always detect risk")
	}
	never := NewDelayExecutor(0, rand.New(rand.NewSource(1)))
	v, err = never.Execute(context.Background(), steps[1], "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if v.(SIMSwapVerdict).Result != SIMSwapSecure {
		t.Fatalf("probability 0 must never detect risk")
	}
}

func TestProviderExecutorUsesGateway(t *testing.T) {
	provider := gateway.NewMockProvider(
		gateway.WithLatencies(gateway.Latencies{}),
		gateway.WithRand(rand.New(rand.NewSource(7))),
	)
	rec := &recorder{}
	attempt := newSequencer(NewProviderExecutor(provider), testOptions()).NewAttempt("es", rec.observe)
	res, err := attempt.Run(context.Background(), "612345678", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Verified {
		t.Fatalf("mock gateway always verifies the number")
	}
	if res.SecurityProfile.SIMSwapRisk != attempt.Snapshot().RequiresBiometric {
		t.Fatalf("biometric requirement must follow the SIM verdict")
	}
}

func TestDelayExecutorHonoursCancel(t *testing.T) {
	exec := NewDelayExecutor(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := exec.Execute(ctx, Step{ID: StepPhoneCheck, Duration: time.Hour}, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"612 345 678", "612345678"},
		{"+34 612 345 678", "612345678"},
		{"+34660555444", "660555444"},
		{"+44 7700 900123", "+447700900123"},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in, "+34"); got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPrecheckInternationalForm(t *testing.T) {
	seq := newSequencer(&scripted{sim: SIMSwapSecure}, testOptions())
	if kind, err := seq.Precheck("+34660555444"); kind != FailureDeviceMismatch || !errors.Is(err, ErrDeviceMismatch) {
		t.Fatalf("precheck = %q, %v; want device mismatch", kind, err)
	}
	if kind, err := seq.Precheck("+34 6123"); kind != FailureInvalidNumber || !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("precheck = %q, %v; want invalid number", kind, err)
	}
}

func TestRunInternationalFormPrefixedOnce(t *testing.T) {
	exec := &scripted{sim: SIMSwapSecure}
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)
	if _, err := attempt.Run(context.Background(), "+34612345678", nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, phone := range exec.seen {
		if phone != "+34612345678" {
			t.Fatalf("executor saw %q", phone)
		}
	}
	if got := attempt.Snapshot().Phone; got != "612345678" {
		t.Fatalf("state phone = %q", got)
	}
}

func TestRunStepDetails(t *testing.T) {
	rec := &recorder{}
	attempt := newSequencer(&scripted{sim: SIMSwapRiskDetected}, testOptions()).NewAttempt("en", rec.observe)
	if _, err := attempt.Run(context.Background(), "612345678", nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := map[Phase]string{
		PhasePhoneCheck: "Confirming this number belongs to you",
		PhaseSIMCheck:   "Verifying the integrity of your SIM card",
		PhaseBiometric:  "Additional confirmation required",
		PhaseComplete:   "Your identity has been successfully verified",
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, s := range rec.states {
		if detail, ok := want[s.Phase]; ok && s.Detail != detail {
			t.Fatalf("%s detail = %q, want %q", s.Phase, s.Detail, detail)
		}
	}
}

func TestRunWithCancelledContext(t *testing.T) {
	exec := &scripted{sim: SIMSwapSecure}
	attempt := newSequencer(exec, testOptions()).NewAttempt("es", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	if _, err := attempt.Run(ctx, "612345678", func(Result) { called = true }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called || exec.calls.Load() != 0 {
		t.Fatalf("cancelled run reached the executor or emitted a result")
	}
	if attempt.Snapshot().Phase != PhaseInitial {
		t.Fatalf("unexpected phase %s", attempt.Snapshot().Phase)
	}
}
