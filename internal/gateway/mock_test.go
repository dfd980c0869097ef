package gateway

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func newTestProvider(seed int64, now time.Time) *MockProvider {
	return NewMockProvider(
		WithLatencies(Latencies{}),
		WithRand(rand.New(rand.NewSource(seed))),
		WithClock(func() time.Time { return now }),
	)
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name     string
		factors  RiskFactors
		risk     RiskLevel
		method   Method
		required bool
		approved bool
	}{
		{"clean", RiskFactors{}, RiskLow, MethodSMSOnly, false, true},
		{"one", RiskFactors{UnusualLocation: true}, RiskMedium, MethodSMSOnly, true, true},
		{"two", RiskFactors{UnusualLocation: true, UnusualTime: true}, RiskMedium, MethodBiometricPlusSMS, true, true},
		{"three", RiskFactors{UnusualLocation: true, UnusualTime: true, SIMSwapRisk: true}, RiskHigh, MethodBiometricPlusSMS, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.factors)
			if d.RiskLevel != tc.risk || d.Method != tc.method || d.VerificationRequired != tc.required || d.Approved != tc.approved {
				t.Fatalf("unexpected decision: %+v", d)
			}
		})
	}
}

func TestMockVerifyNumberAlwaysVerifies(t *testing.T) {
	p := newTestProvider(7, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	for i := 0; i < 50; i++ {
		res, err := p.VerifyNumber(context.Background(), "612345678")
		if err != nil {
			t.Fatalf("verify number: %v", err)
		}
		if !res.Verified {
			t.Fatal("mock must always verify the number")
		}
		if res.Risk.FraudProbability < 0 || res.Risk.FraudProbability >= 0.2 {
			t.Fatalf("fraud probability out of range: %f", res.Risk.FraudProbability)
		}
		if res.DeviceFingerprint == "" {
			t.Fatal("expected device fingerprint")
		}
	}
}

func TestMockSIMSwapLastChangeWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newTestProvider(11, now)
	for i := 0; i < 50; i++ {
		res, err := p.CheckSIMSwap(context.Background(), "612345678")
		if err != nil {
			t.Fatalf("sim swap: %v", err)
		}
		if res.LastSIMChange != nil && now.Sub(*res.LastSIMChange) > simChangeWindow {
			t.Fatalf("last change outside window: %s", res.LastSIMChange)
		}
		if res.RiskLevel != RiskLow && res.RiskLevel != RiskHigh {
			t.Fatalf("unexpected risk level %s", res.RiskLevel)
		}
	}
}

func TestMockRealTimeNightIsUnusual(t *testing.T) {
	p := newTestProvider(3, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC))
	res, err := p.RealTimeVerification(context.Background(), RealTimeRequest{Phone: "612345678", Amount: 1_000})
	if err != nil {
		t.Fatalf("realtime: %v", err)
	}
	if !res.RiskFactors.UnusualTime {
		t.Fatal("expected 03:00 to be flagged as unusual time")
	}
	if res.RiskFactors.UnusualAmount {
		t.Fatal("€10 must never be flagged as unusual amount")
	}
	if !res.VerificationRequired {
		t.Fatal("expected verification to be required")
	}
}

func TestMockHonoursCancellation(t *testing.T) {
	p := NewMockProvider(WithLatencies(Latencies{Number: time.Minute}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.VerifyNumber(ctx, "612345678"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
