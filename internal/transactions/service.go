package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service exposes card transaction history.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a transactions service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// SeedSamples records the sample meals on cardID. Samples keep their order:
// the first is the most recent.
func (s *Service) SeedSamples(ctx context.Context, cardID string) error {
	now := s.now().UTC()
	for i, sample := range Samples {
		tx := sample
		tx.ID = uuid.New().String()
		tx.CardID = cardID
		tx.CreatedAt = now.Add(-time.Duration(i) * time.Minute)
		if err := s.repo.Create(ctx, tx); err != nil {
			return fmt.Errorf("seed %s: %w", sample.Restaurant, err)
		}
	}
	return nil
}

// List returns the history of cardID, newest first.
func (s *Service) List(ctx context.Context, cardID string) ([]Transaction, error) {
	return s.repo.ListByCard(ctx, cardID)
}

// Spent returns the total spent on cardID.
func (s *Service) Spent(ctx context.Context, cardID string) (int64, error) {
	txs, err := s.repo.ListByCard(ctx, cardID)
	if err != nil {
		return 0, err
	}
	return Total(txs), nil
}

// SpentSince returns the total spent on cardID from since onwards.
func (s *Service) SpentSince(ctx context.Context, cardID string, since time.Time) (int64, error) {
	txs, err := s.repo.ListByCard(ctx, cardID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, tx := range txs {
		if !tx.CreatedAt.Before(since) {
			total += tx.Amount
		}
	}
	return total, nil
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
