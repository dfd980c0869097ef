package card

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/food-voucher/food_voucher/internal/transactions"
)

func newTestService() *Service {
	history := transactions.NewService(transactions.NewMemoryRepository())
	return NewService(NewMemoryRepository(), history, 25000)
}

func TestIssueSeedsHistoryAndBalance(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	c, err := svc.Issue(ctx, "profile-1", "device_abc")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !c.DeviceBound() || c.Locked() || c.Currency != "EUR" || len(c.Last4) != 4 {
		t.Fatalf("unexpected card %+v", c)
	}

	balance, err := svc.Balance(ctx, c)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Allowance != 25000 || balance.Spent != 6350 || balance.Available != 18650 {
		t.Fatalf("unexpected balance %+v", balance)
	}
}

func TestIssueIsIdempotentPerProfile(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.Issue(ctx, "profile-1", "device_a")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, err := svc.Issue(ctx, "profile-1", "device_b")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one card per profile")
	}
	if second.DeviceID != "device_b" {
		t.Fatalf("expected rebinding to device_b, got %s", second.DeviceID)
	}
	balance, _ := svc.Balance(ctx, second)
	if balance.Spent != 6350 {
		t.Fatalf("samples seeded twice: spent %d", balance.Spent)
	}
}

func TestLockUnlock(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.Issue(ctx, "profile-1", "device_a")

	locked, err := svc.Lock(ctx, c.ID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !locked.Locked() {
		t.Fatalf("card not locked")
	}
	unlocked, err := svc.Unlock(ctx, c.ID)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if unlocked.Locked() {
		t.Fatalf("card still locked")
	}

	if _, err := svc.Lock(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type flakyHistory struct {
	transactions.Repository
	down bool
}

func (f *flakyHistory) Create(ctx context.Context, tx transactions.Transaction) error {
	if f.down {
		return errors.New("history unavailable")
	}
	return f.Repository.Create(ctx, tx)
}

func TestIssueReseedsAfterFailedSeeding(t *testing.T) {
	repo := &flakyHistory{Repository: transactions.NewMemoryRepository(), down: true}
	svc := NewService(NewMemoryRepository(), transactions.NewService(repo), 25000)
	ctx := context.Background()

	if _, err := svc.Issue(ctx, "profile-1", "device_a"); err == nil {
		t.Fatalf("expected seeding error")
	}

	repo.down = false
	c, err := svc.Issue(ctx, "profile-1", "device_a")
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	balance, err := svc.Balance(ctx, c)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Spent != 6350 {
		t.Fatalf("samples not seeded on reissue: spent %d", balance.Spent)
	}
}

func TestBalanceSpentThisMonth(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	c, _ := svc.Issue(ctx, "profile-1", "device_a")

	balance, _ := svc.Balance(ctx, c)
	if balance.SpentThisMonth > balance.Spent {
		t.Fatalf("monthly spending %d exceeds total %d", balance.SpentThisMonth, balance.Spent)
	}

	svc.now = func() time.Time { return time.Now().AddDate(0, 0, 40) }
	balance, err := svc.Balance(ctx, c)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.SpentThisMonth != 0 || balance.Spent != 6350 || balance.Available != 18650 {
		t.Fatalf("unexpected balance next month %+v", balance)
	}
}
