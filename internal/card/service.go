package card

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/food-voucher/food_voucher/internal/transactions"
)

// validity is how long an issued card stays valid.
const validity = 2 * 365 * 24 * time.Hour

// Service issues voucher cards and reports their balance.
type Service struct {
	repo      Repository
	history   *transactions.Service
	allowance int64
	now       func() time.Time
}

// NewService builds a card service. allowance is the monthly budget in cents.
func NewService(repo Repository, history *transactions.Service, allowance int64) *Service {
	return &Service{repo: repo, history: history, allowance: allowance, now: time.Now}
}

// Issue returns the card of profileID, generating it on first verification.
// The card is bound to deviceID; an existing binding is replaced.
func (s *Service) Issue(ctx context.Context, profileID, deviceID string) (Card, error) {
	existing, err := s.repo.GetByProfile(ctx, profileID)
	if err == nil {
		if err := s.ensureHistory(ctx, existing.ID); err != nil {
			return Card{}, err
		}
		if deviceID != "" && existing.DeviceID != deviceID {
			existing.DeviceID = deviceID
			if err := s.repo.Update(ctx, existing); err != nil {
				return Card{}, err
			}
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Card{}, err
	}

	now := s.now().UTC()
	expiry := now.Add(validity)
	c := Card{
		ID:          uuid.New().String(),
		ProfileID:   profileID,
		Last4:       fmt.Sprintf("%04d", rand.Intn(10000)),
		ExpiryMonth: int(expiry.Month()),
		ExpiryYear:  expiry.Year(),
		Allowance:   s.allowance,
		Currency:    transactions.Currency,
		Status:      StatusActive,
		DeviceID:    deviceID,
		IssuedAt:    now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Card{}, fmt.Errorf("create card: %w", err)
	}
	if err := s.history.SeedSamples(ctx, c.ID); err != nil {
		return Card{}, err
	}
	return c, nil
}

// ensureHistory seeds the samples on a card whose first seeding failed.
func (s *Service) ensureHistory(ctx context.Context, cardID string) error {
	txs, err := s.history.List(ctx, cardID)
	if err != nil {
		return err
	}
	if len(txs) > 0 {
		return nil
	}
	return s.history.SeedSamples(ctx, cardID)
}

// Get retrieves a card.
func (s *Service) Get(ctx context.Context, id string) (Card, error) {
	return s.repo.Get(ctx, id)
}

// ForProfile retrieves the card issued to profileID.
func (s *Service) ForProfile(ctx context.Context, profileID string) (Card, error) {
	return s.repo.GetByProfile(ctx, profileID)
}

// Lock blocks payments with the card.
func (s *Service) Lock(ctx context.Context, id string) (Card, error) {
	return s.setStatus(ctx, id, StatusLocked)
}

// Unlock re-enables payments with the card.
func (s *Service) Unlock(ctx context.Context, id string) (Card, error) {
	return s.setStatus(ctx, id, StatusActive)
}

func (s *Service) setStatus(ctx context.Context, id string, status Status) (Card, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Card{}, err
	}
	if c.Status == status {
		return c, nil
	}
	c.Status = status
	if err := s.repo.Update(ctx, c); err != nil {
		return Card{}, err
	}
	return c, nil
}

// Balance returns allowance minus everything spent on the card.
func (s *Service) Balance(ctx context.Context, c Card) (Balance, error) {
	asOf := s.now().UTC()
	spent, err := s.history.Spent(ctx, c.ID)
	if err != nil {
		return Balance{}, err
	}
	month, err := s.history.SpentSince(ctx, c.ID, transactions.MonthStart(asOf))
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		CardID:         c.ID,
		Allowance:      c.Allowance,
		Spent:          spent,
		SpentThisMonth: month,
		Available:      c.Allowance - spent,
		AsOf:           asOf,
	}, nil
}
