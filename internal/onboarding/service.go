// Package onboarding runs verification attempts in the background and turns
// their results into a verified profile with an issued voucher card.
package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/food-voucher/food_voucher/internal/card"
	"github.com/food-voucher/food_voucher/internal/logging"
	"github.com/food-voucher/food_voucher/internal/notification"
	"github.com/food-voucher/food_voucher/internal/session"
	"github.com/food-voucher/food_voucher/internal/verification"
)

// ErrNotRunning is returned when cancelling a run that already finished.
var ErrNotRunning = errors.New("verification run is not running")

const storeTimeout = 2 * time.Second

// Service owns the in-flight attempts of this process.
type Service struct {
	seq      *verification.Sequencer
	store    RunStore
	profiles *session.Service
	cards    *card.Service
	notifier notification.Notifier
	logger   *slog.Logger
	idleTTL  time.Duration
	now      func() time.Time

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*run
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Sequencer *verification.Sequencer
	Store     RunStore
	Profiles  *session.Service
	Cards     *card.Service
	Notifier  notification.Notifier
	Logger    *slog.Logger
	// IdleTTL is how long a finished attempt stays restartable.
	IdleTTL time.Duration
}

// NewService builds an onboarding service.
func NewService(d Deps) *Service {
	ctx, stop := context.WithCancel(context.Background())
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	return &Service{
		seq:      d.Sequencer,
		store:    d.Store,
		profiles: d.Profiles,
		cards:    d.Cards,
		notifier: notifier,
		logger:   logging.Component(d.Logger, "onboarding"),
		idleTTL:  d.IdleTTL,
		now:      time.Now,
		baseCtx:  ctx,
		stop:     stop,
		runs:     make(map[string]*run),
	}
}

type run struct {
	id      string
	locale  string
	attempt *verification.Attempt

	mu        sync.Mutex
	phone     string
	profileID string
	snap      Snapshot
	finished  time.Time
	// active is held from the moment an attempt is claimed until its
	// goroutine has released it; at most one attempt per run is active.
	active    bool
	cancel    context.CancelFunc
	abandoned bool
	delivered bool
}

func (r *run) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *run) update(fn func(*Snapshot)) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.snap)
	return r.snap
}

// claim reserves r for a new attempt and returns the context it runs under.
func (r *run) claim(base context.Context) (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil, verification.ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(base)
	r.active = true
	r.cancel = cancel
	r.abandoned = false
	r.delivered = false
	return ctx, nil
}

// Start verifies phone in the background and returns the first snapshot. A
// number rejected by the precheck fails synchronously: the failed snapshot is
// returned together with ErrInvalidPhone or ErrDeviceMismatch.
func (s *Service) Start(ctx context.Context, phone, locale string) (Snapshot, error) {
	r := &run{id: uuid.New().String(), locale: locale}
	r.attempt = s.seq.NewAttempt(locale, func(st verification.State) { s.observe(r, st) })
	r.snap = Snapshot{RunID: r.id, Locale: locale, State: r.attempt.Snapshot(), UpdatedAt: s.now().UTC()}
	runCtx, err := r.claim(s.baseCtx)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	s.runs[r.id] = r
	s.mu.Unlock()

	return s.launch(ctx, runCtx, r, phone)
}

// Status returns the latest snapshot of runID.
func (s *Service) Status(ctx context.Context, runID string) (Snapshot, error) {
	if r := s.lookup(runID); r != nil {
		return r.snapshot(), nil
	}
	return s.store.Get(ctx, runID)
}

// Cancel abandons a running attempt. Its progress is discarded and no result
// is emitted. A run whose result was already delivered reports ErrNotRunning.
func (s *Service) Cancel(ctx context.Context, runID string) error {
	r := s.lookup(runID)
	if r == nil {
		if _, err := s.store.Get(ctx, runID); err != nil {
			return err
		}
		return ErrNotRunning
	}
	r.mu.Lock()
	if !r.active || r.delivered {
		r.mu.Unlock()
		return ErrNotRunning
	}
	r.abandoned = true
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	return nil
}

// Restart resets a finished attempt and verifies phone again. An empty phone
// reuses the number of the previous attempt.
func (s *Service) Restart(ctx context.Context, runID, phone string) (Snapshot, error) {
	r := s.lookup(runID)
	if r == nil {
		if _, err := s.store.Get(ctx, runID); err != nil {
			return Snapshot{}, err
		}
		// Known to the store but owned by another process or already swept.
		return Snapshot{}, ErrRunNotFound
	}
	runCtx, err := r.claim(s.baseCtx)
	if err != nil {
		return r.snapshot(), err
	}
	if err := r.attempt.Restart(); err != nil {
		s.release(r)
		return r.snapshot(), err
	}
	if phone == "" {
		r.mu.Lock()
		phone = r.phone
		r.mu.Unlock()
	}
	return s.launch(ctx, runCtx, r, phone)
}

func (s *Service) launch(ctx, runCtx context.Context, r *run, phone string) (Snapshot, error) {
	phone = s.seq.Normalize(phone)
	r.mu.Lock()
	r.phone = phone
	r.mu.Unlock()

	if _, err := s.seq.Precheck(phone); err != nil {
		// The attempt rejects the number before any step runs.
		_, err = r.attempt.Run(ctx, phone, nil)
		r.update(func(sn *Snapshot) { sn.Result = nil })
		return s.release(r), err
	}

	profile, err := s.profiles.Open(ctx, phone)
	if err != nil {
		s.release(r)
		return r.snapshot(), err
	}
	r.mu.Lock()
	r.profileID = profile.ID
	r.finished = time.Time{}
	r.mu.Unlock()

	snap := r.update(func(sn *Snapshot) {
		sn.ProfileID = profile.ID
		sn.Running = true
		sn.Cancelled = false
		sn.Result = nil
		sn.CardID = ""
		sn.UpdatedAt = s.now().UTC()
	})
	s.save(snap)

	s.wg.Add(1)
	go s.execute(runCtx, r, phone)
	return snap, nil
}

func (s *Service) execute(ctx context.Context, r *run, phone string) {
	defer s.wg.Done()
	defer s.release(r)

	_, err := r.attempt.Run(ctx, phone, func(res verification.Result) { s.complete(r, res) })

	r.mu.Lock()
	abandoned := r.abandoned
	r.mu.Unlock()

	switch {
	case errors.Is(err, verification.ErrAlreadyRunning):
		s.logger.Warn("attempt already running", slog.String("run_id", r.id))
	case abandoned, errors.Is(err, context.Canceled):
		s.abandon(r)
	case err == nil:
	default:
		s.fail(r, err)
	}
}

// observe mirrors every state change into the run snapshot and the store.
func (s *Service) observe(r *run, st verification.State) {
	snap := r.update(func(sn *Snapshot) {
		sn.State = st
		sn.UpdatedAt = s.now().UTC()
	})
	s.save(snap)
}

func (s *Service) complete(r *run, res verification.Result) {
	r.mu.Lock()
	if r.abandoned {
		r.mu.Unlock()
		return
	}
	r.delivered = true
	profileID := r.profileID
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	profile, err := s.profiles.RecordResult(ctx, profileID, res)
	if err != nil {
		s.logger.Error("record verification result", slog.String("run_id", r.id), slog.Any("error", err))
	}
	deviceID := "device_" + uuid.NewString()[:9]
	issued, err := s.cards.Issue(ctx, profileID, deviceID)
	if err != nil {
		s.logger.Error("issue card", slog.String("run_id", r.id), slog.Any("error", err))
	}

	snap := r.update(func(sn *Snapshot) {
		result := res
		sn.Result = &result
		sn.CardID = issued.ID
		sn.UpdatedAt = s.now().UTC()
	})
	s.save(snap)

	s.notify(ctx, notification.Message{
		Kind:        notification.KindVerificationCompleted,
		Destination: profileID,
		Body:        "verification completed",
		Attributes: map[string]string{
			"run_id":      r.id,
			"trust_level": string(res.TrustLevel),
			"status":      string(profile.Status),
			"card_id":     issued.ID,
		},
	})
	if res.SecurityProfile.SIMSwapRisk {
		s.notify(ctx, notification.Message{
			Kind:        notification.KindSIMSwapRisk,
			Destination: profileID,
			Body:        "sim swap risk detected, biometric confirmation completed",
			Attributes:  map[string]string{"run_id": r.id},
		})
	}
}

func (s *Service) fail(r *run, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	current := r.snapshot()
	if _, err := s.profiles.RecordFailure(ctx, current.ProfileID, current.State.Failure); err != nil {
		s.logger.Error("record verification failure", slog.String("run_id", r.id), slog.Any("error", err))
	}
	s.notify(ctx, notification.Message{
		Kind:        notification.KindVerificationFailed,
		Destination: current.ProfileID,
		Body:        cause.Error(),
		Attributes: map[string]string{
			"run_id":  r.id,
			"failure": string(current.State.Failure),
		},
	})
}

func (s *Service) abandon(r *run) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := s.profiles.Abandon(ctx, r.snapshot().ProfileID); err != nil {
		s.logger.Warn("abandon profile", slog.String("run_id", r.id), slog.Any("error", err))
	}
	// A cancel racing a finished attempt still discards what it reached.
	if r.attempt.Snapshot().Phase != verification.PhaseInitial {
		if err := r.attempt.Restart(); err != nil {
			s.logger.Warn("reset abandoned attempt", slog.String("run_id", r.id), slog.Any("error", err))
		}
	}
	r.update(func(sn *Snapshot) {
		sn.State = r.attempt.Snapshot()
		sn.Result = nil
		sn.CardID = ""
		sn.Cancelled = true
	})
}

// release ends the active attempt of r. The snapshot only reports idle once
// the run can be restarted.
func (s *Service) release(r *run) Snapshot {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.active = false
	r.finished = s.now()
	r.snap.Running = false
	r.snap.UpdatedAt = s.now().UTC()
	snap := r.snap
	r.mu.Unlock()

	s.save(snap)
	return snap
}

func (s *Service) save(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Warn("save run snapshot", slog.String("run_id", snap.RunID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	msg.OccurredAt = s.now().UTC()
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("send notification", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}

func (s *Service) lookup(runID string) *run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[runID]
}

// Sweep forgets finished attempts idle for longer than the idle TTL and
// reports how many were dropped. Their snapshots stay in the store until it
// expires them.
func (s *Service) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, r := range s.runs {
		r.mu.Lock()
		idle := !r.active && !r.finished.IsZero() && r.finished.Before(cutoff)
		r.mu.Unlock()
		if idle {
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}

// Close cancels every running attempt and waits for them to stop or ctx to end.
func (s *Service) Close(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
