package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/food-voucher/food_voucher/internal/verification"
)

// Service manages the beneficiary profile across verification attempts.
type Service struct {
	repo        Repository
	countryCode string
	now         func() time.Time
}

// NewService creates a profile service. countryCode prefixes masked numbers.
func NewService(repo Repository, countryCode string) *Service {
	return &Service{repo: repo, countryCode: countryCode, now: time.Now}
}

// Open returns the profile for phone, creating it on first use, and marks it
// as verifying.
func (s *Service) Open(ctx context.Context, phone string) (Profile, error) {
	now := s.now().UTC()
	p, err := s.repo.FindByPhone(ctx, phone)
	switch {
	case errors.Is(err, ErrNotFound):
		p = Profile{
			ID:          uuid.New().String(),
			Phone:       phone,
			MaskedPhone: MaskPhone(s.countryCode, phone),
			Status:      StatusVerifying,
			Trust:       TrustNew,
			Alert:       AlertNormal,
			JoinedAt:    now,
			UpdatedAt:   now,
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return Profile{}, fmt.Errorf("create profile: %w", err)
		}
		return p, nil
	case err != nil:
		return Profile{}, err
	}

	p.Status = StatusVerifying
	p.Failure = verification.FailureNone
	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		return Profile{}, err
	}
	return s.decorate(p), nil
}

// Get returns a profile by id.
func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return s.decorate(p), nil
}

// RecordResult folds a completed verification into the profile.
func (s *Service) RecordResult(ctx context.Context, id string, res verification.Result) (Profile, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	now := s.now().UTC()
	p.Status = StatusFailed
	if res.Verified {
		p.Status = StatusVerified
	}
	p.Trust = trustFrom(res.TrustLevel)
	p.Security = res.SecurityProfile
	p.Alert = AlertNormal
	if res.SecurityProfile.SIMSwapRisk {
		p.Alert = AlertWarning
	}
	p.Failure = verification.FailureNone
	p.LastVerifiedAt = &now
	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		return Profile{}, err
	}
	return s.decorate(p), nil
}

// RecordFailure marks the profile failed. Trust and security data from an
// earlier successful attempt are kept.
func (s *Service) RecordFailure(ctx context.Context, id string, kind verification.FailureKind) (Profile, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	p.Status = StatusFailed
	p.Failure = kind
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return Profile{}, err
	}
	return s.decorate(p), nil
}

// Abandon returns a verifying profile to pending after a cancelled run.
func (s *Service) Abandon(ctx context.Context, id string) error {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != StatusVerifying {
		return nil
	}
	p.Status = StatusPending
	p.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, p)
}

func (s *Service) decorate(p Profile) Profile {
	if p.MaskedPhone == "" {
		p.MaskedPhone = MaskPhone(s.countryCode, p.Phone)
	}
	return p
}

func trustFrom(level verification.TrustLevel) Trust {
	switch level {
	case verification.TrustLow:
		return TrustLow
	case verification.TrustMedium:
		return TrustMedium
	case verification.TrustHigh:
		return TrustHigh
	default:
		return TrustNew
	}
}

// MaskPhone hides every digit but the first and groups the rest by three:
// "+34", "612345678" gives "+34 6XX XXX XXX".
func MaskPhone(countryCode, phone string) string {
	runes := []rune(phone)
	if len(runes) == 0 {
		return countryCode
	}
	var b strings.Builder
	if countryCode != "" {
		b.WriteString(countryCode)
		b.WriteByte(' ')
	}
	for i, r := range runes {
		if i > 0 && i%3 == 0 {
			b.WriteByte(' ')
		}
		if i == 0 {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('X')
	}
	return b.String()
}
