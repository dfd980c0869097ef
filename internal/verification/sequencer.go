package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/food-voucher/food_voucher/internal/config"
	"github.com/food-voucher/food_voucher/internal/i18n"
	"github.com/food-voucher/food_voucher/internal/logging"
)

var (
	// ErrInvalidPhone is returned when the submitted number is too short.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrDeviceMismatch is returned for the designated failing test number.
	ErrDeviceMismatch = errors.New("phone number does not match device")

	// ErrServiceUnavailable is returned when the verification gateway keeps
	// failing after the configured retries.
	ErrServiceUnavailable = errors.New("verification service unavailable")

	// ErrAlreadyRunning is returned when an attempt is started or restarted
	// while it is not idle.
	ErrAlreadyRunning = errors.New("verification already running")
)

// Options tunes a Sequencer.
type Options struct {
	Steps          []Step
	MinPhoneLength int
	FailNumber     string
	CountryCode    string
	SettleDelay    time.Duration
	StepTimeout    time.Duration
	StepRetries    int
}

// OptionsFromConfig maps service configuration onto sequencer options.
func OptionsFromConfig(cfg config.Verification) Options {
	return Options{
		Steps:          DefaultSteps(cfg.PhoneCheckDuration, cfg.SIMCheckDuration, cfg.BiometricDuration),
		MinPhoneLength: cfg.MinPhoneLength,
		FailNumber:     cfg.FailNumber,
		CountryCode:    cfg.CountryCode,
		SettleDelay:    cfg.SettleDelay,
		StepTimeout:    cfg.StepTimeout,
		StepRetries:    cfg.StepRetries,
	}
}

// Sequencer walks the verification steps for one attempt at a time. It holds
// no per-attempt state and may be shared.
type Sequencer struct {
	opts   Options
	exec   Executor
	texts  *i18n.Translator
	logger *slog.Logger
}

// NewSequencer builds a Sequencer.
func NewSequencer(exec Executor, texts *i18n.Translator, logger *slog.Logger, opts Options) *Sequencer {
	if len(opts.Steps) == 0 {
		opts.Steps = DefaultSteps(0, 0, 0)
	}
	if opts.StepRetries < 0 {
		opts.StepRetries = 0
	}
	steps := make([]Step, len(opts.Steps))
	for i, step := range opts.Steps {
		if step.Name == "" {
			step.Name = i18n.StepNameKey(string(step.ID))
		}
		if step.Description == "" {
			step.Description = i18n.StepDescriptionKey(string(step.ID))
		}
		steps[i] = step
	}
	opts.Steps = steps
	return &Sequencer{opts: opts, exec: exec, texts: texts, logger: logging.Component(logger, "sequencer")}
}

// Steps returns the configured step sequence.
func (s *Sequencer) Steps() []Step {
	return append([]Step(nil), s.opts.Steps...)
}

// NormalizePhone strips whitespace from user input and a leading
// countryCode, so national numbers compare equal however they were typed.
// Numbers carrying another country code keep their prefix.
func NormalizePhone(phone, countryCode string) string {
	phone = strings.Join(strings.Fields(phone), "")
	if countryCode != "" && strings.HasPrefix(phone, countryCode) {
		return strings.TrimPrefix(phone, countryCode)
	}
	return phone
}

// Normalize applies NormalizePhone with the configured country code.
func (s *Sequencer) Normalize(phone string) string {
	return NormalizePhone(phone, s.opts.CountryCode)
}

// MSISDN returns the international form of a normalized number.
func (s *Sequencer) MSISDN(phone string) string {
	if strings.HasPrefix(phone, "+") {
		return phone
	}
	return s.opts.CountryCode + phone
}

// Precheck validates phone before any step runs. It is deterministic.
func (s *Sequencer) Precheck(phone string) (FailureKind, error) {
	phone = s.Normalize(phone)
	if utf8.RuneCountInString(phone) < s.opts.MinPhoneLength {
		return FailureInvalidNumber, ErrInvalidPhone
	}
	if s.opts.FailNumber != "" && phone == s.opts.FailNumber {
		return FailureDeviceMismatch, ErrDeviceMismatch
	}
	return FailureNone, nil
}

// Observer receives every state an attempt goes through.
type Observer func(State)

// Attempt is a single verification run. It owns its State exclusively.
type Attempt struct {
	seq     *Sequencer
	locale  string
	observe Observer

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
}

// NewAttempt creates an idle attempt rendering copy in locale. observe may be nil.
func (s *Sequencer) NewAttempt(locale string, observe Observer) *Attempt {
	a := &Attempt{seq: s, locale: locale, observe: observe}
	a.state = NewState(a.text(i18n.KeySecurityCheck))
	return a
}

// Snapshot returns the current state.
func (a *Attempt) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Cancel abandons an in-flight run. The run discards its state and emits no
// result. Cancel on an idle attempt does nothing.
func (a *Attempt) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Restart returns a finished attempt to PhaseInitial so it can run again.
func (a *Attempt) Restart() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.mu.Unlock()
	return a.apply(Restarted{Message: a.text(i18n.KeySecurityCheck)})
}

// Run verifies phone and blocks until the attempt completes, fails or is
// cancelled through ctx or Cancel. On success onComplete receives the result
// once, after the settle delay; a cancelled run never calls it.
func (a *Attempt) Run(ctx context.Context, phone string, onComplete func(Result)) (Result, error) {
	a.mu.Lock()
	if a.running || a.state.Phase != PhaseInitial {
		a.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	a.running = true
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.running = false
		a.cancel = nil
		a.mu.Unlock()
	}()

	// Cancelled before the first step.
	if err := ctx.Err(); err != nil {
		return Result{}, a.discard(err)
	}

	s := a.seq
	phone = s.Normalize(phone)
	if err := a.apply(Submitted{Phone: phone}); err != nil {
		return Result{}, err
	}

	if kind, err := s.Precheck(phone); err != nil {
		msg := a.text(i18n.KeyInvalidNumber)
		if kind == FailureDeviceMismatch {
			msg = a.text(i18n.KeyDeviceMismatch)
		}
		if applyErr := a.apply(Rejected{Kind: kind, Message: msg}); applyErr != nil {
			return Result{}, applyErr
		}
		s.logger.Info("verification rejected", slog.String("failure", string(kind)))
		return Result{}, err
	}

	msisdn := s.MSISDN(phone)
	for idx, step := range s.opts.Steps {
		if err := ctx.Err(); err != nil {
			return Result{}, a.discard(err)
		}
		current := a.Snapshot()
		if !applicable(step, current) {
			s.logger.Debug("step skipped", slog.String("step", string(step.ID)))
			continue
		}
		if err := a.apply(StepStarted{
			Step:     step.ID,
			Progress: progressAt(s.opts.Steps, current, idx),
			Message:  a.text(step.Name),
			Detail:   a.text(step.Description),
		}); err != nil {
			return Result{}, err
		}

		verdict, err := a.execute(ctx, step, msisdn)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, a.discard(ctx.Err())
			}
			if applyErr := a.apply(Failed{Kind: FailureServiceUnavailable, Message: a.text(i18n.KeyServiceUnavailable)}); applyErr != nil {
				return Result{}, applyErr
			}
			s.logger.Warn("verification failed", slog.String("step", string(step.ID)), slog.Any("error", err))
			return Result{}, fmt.Errorf("step %s: %w: %v", step.ID, ErrServiceUnavailable, err)
		}
		if err := a.apply(StepCompleted{Step: step.ID, Verdict: verdict}); err != nil {
			return Result{}, err
		}
	}

	if err := a.apply(Completed{Message: a.text(i18n.KeyComplete), Detail: a.text(i18n.KeyCompleteDetail)}); err != nil {
		return Result{}, err
	}
	if err := sleep(ctx, s.opts.SettleDelay); err != nil {
		return Result{}, a.discard(err)
	}

	result, err := ResultOf(a.Snapshot())
	if err != nil {
		return Result{}, err
	}
	s.logger.Info("verification completed",
		slog.String("trust_level", string(result.TrustLevel)),
		slog.Bool("sim_swap_risk", result.SecurityProfile.SIMSwapRisk),
	)
	if onComplete != nil {
		onComplete(result)
	}
	return result, nil
}

func (a *Attempt) execute(ctx context.Context, step Step, phone string) (Verdict, error) {
	s := a.seq
	var lastErr error
	for try := 0; try <= s.opts.StepRetries; try++ {
		stepCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.opts.StepTimeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, s.opts.StepTimeout)
		}
		verdict, err := s.exec.Execute(stepCtx, step, phone)
		cancel()
		if err == nil {
			if verdict == nil || verdict.step() != step.ID {
				return nil, fmt.Errorf("executor returned verdict for wrong step")
			}
			return verdict, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		s.logger.Warn("step attempt failed",
			slog.String("step", string(step.ID)),
			slog.Int("attempt", try+1),
			slog.Any("error", err),
		)
	}
	return nil, lastErr
}

func (a *Attempt) apply(e Event) error {
	a.mu.Lock()
	next, err := Transition(a.state, e)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.state = next
	a.mu.Unlock()

	if a.observe != nil {
		a.observe(next)
	}
	return nil
}

// discard drops all progress of a cancelled run.
func (a *Attempt) discard(cause error) error {
	a.mu.Lock()
	a.state = NewState(a.text(i18n.KeySecurityCheck))
	a.mu.Unlock()
	a.seq.logger.Info("verification cancelled", slog.Any("cause", cause))
	return cause
}

func (a *Attempt) text(key string) string {
	if a.seq.texts == nil {
		return key
	}
	return a.seq.texts.T(a.locale, key)
}
