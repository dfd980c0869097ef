package session

import (
	"context"
	"errors"
	"testing"

	"github.com/food-voucher/food_voucher/internal/verification"
)

func TestOpenCreatesThenReuses(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+34")
	ctx := context.Background()

	p, err := svc.Open(ctx, "612345678")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if p.Status != StatusVerifying || p.Trust != TrustNew || p.Alert != AlertNormal {
		t.Fatalf("unexpected new profile %+v", p)
	}
	if p.MaskedPhone != "+34 6XX XXX XXX" {
		t.Fatalf("masked phone = %q", p.MaskedPhone)
	}

	again, err := svc.Open(ctx, "612345678")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again.ID != p.ID {
		t.Fatalf("expected same profile, got %s and %s", p.ID, again.ID)
	}
}

func TestRecordResultWithSIMRisk(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+34")
	ctx := context.Background()
	p, err := svc.Open(ctx, "612345678")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	updated, err := svc.RecordResult(ctx, p.ID, verification.Result{
		Verified:        true,
		TrustLevel:      verification.TrustMedium,
		SecurityProfile: verification.SecurityProfile{PhoneVerified: true, SIMSwapRisk: true},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if updated.Status != StatusVerified || updated.Trust != TrustMedium || updated.Alert != AlertWarning {
		t.Fatalf("unexpected profile %+v", updated)
	}
	if updated.LastVerifiedAt == nil {
		t.Fatalf("last verification not set")
	}
}

func TestRecordResultSecure(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+34")
	ctx := context.Background()
	p, _ := svc.Open(ctx, "612345678")

	updated, err := svc.RecordResult(ctx, p.ID, verification.Result{
		Verified:        true,
		TrustLevel:      verification.TrustHigh,
		SecurityProfile: verification.SecurityProfile{PhoneVerified: true},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if updated.Trust != TrustHigh || updated.Alert != AlertNormal {
		t.Fatalf("unexpected profile %+v", updated)
	}
}

func TestRecordFailureAndAbandon(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+34")
	ctx := context.Background()
	p, _ := svc.Open(ctx, "612345678")

	failed, err := svc.RecordFailure(ctx, p.ID, verification.FailureServiceUnavailable)
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if failed.Status != StatusFailed || failed.Failure != verification.FailureServiceUnavailable {
		t.Fatalf("unexpected profile %+v", failed)
	}

	if _, err := svc.Open(ctx, "612345678"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := svc.Abandon(ctx, p.ID); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	got, _ := svc.Get(ctx, p.ID)
	if got.Status != StatusPending || got.Failure != verification.FailureNone {
		t.Fatalf("unexpected profile after abandon %+v", got)
	}
}

func TestGetUnknownProfile(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+34")
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"612345678": "+34 6XX XXX XXX",
		"6":         "+34 6",
		"6123":      "+34 6XX X",
	}
	for in, want := range cases {
		if got := MaskPhone("+34", in); got != want {
			t.Fatalf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
	if got := MaskPhone("", "612345678"); got != "6XX XXX XXX" {
		t.Fatalf("without country code got %q", got)
	}
}
