package verification

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/food-voucher/food_voucher/internal/gateway"
)

// Verdict is the tagged outcome of a single step.
type Verdict interface {
	step() StepID
	apply(*State)
}

// PhoneVerdict is produced by the number verification step.
type PhoneVerdict struct {
	Verified   bool
	Confidence gateway.Confidence
}

// SIMSwapVerdict is produced by the SIM swap step.
type SIMSwapVerdict struct {
	Result SIMSwapResult
}

// BiometricVerdict is produced by the biometric step.
type BiometricVerdict struct{}

func (PhoneVerdict) step() StepID     { return StepPhoneCheck }
func (SIMSwapVerdict) step() StepID   { return StepSIMCheck }
func (BiometricVerdict) step() StepID { return StepBiometric }

func (v PhoneVerdict) apply(s *State) { s.PhoneVerified = v.Verified }

func (v SIMSwapVerdict) apply(s *State) {
	s.SIMSwap = v.Result
	s.RequiresBiometric = v.Result == SIMSwapRiskDetected
	s.TrustLevel = trustAfterSIMCheck(v.Result)
}

func (BiometricVerdict) apply(*State) {}

// trustAfterSIMCheck maps a clean SIM to TrustHigh and a detected swap to
// TrustMedium. TrustLow is never reached.
func trustAfterSIMCheck(r SIMSwapResult) TrustLevel {
	if r == SIMSwapRiskDetected {
		return TrustMedium
	}
	return TrustHigh
}

// Executor performs the external part of a step: a fixed delay or a call to
// the verification gateway. Both are interchangeable for the sequencer.
type Executor interface {
	Execute(ctx context.Context, step Step, phone string) (Verdict, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, step Step, phone string) (Verdict, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, step Step, phone string) (Verdict, error) {
	return f(ctx, step, phone)
}

// DelayExecutor suspends for each step's duration and draws the SIM swap
// verdict locally with a fixed risk probability.
type DelayExecutor struct {
	riskProbability float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDelayExecutor builds a DelayExecutor. A nil rnd is seeded from the clock.
func NewDelayExecutor(riskProbability float64, rnd *rand.Rand) *DelayExecutor {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DelayExecutor{riskProbability: riskProbability, rnd: rnd}
}

// Execute waits step.Duration and returns the step verdict.
func (e *DelayExecutor) Execute(ctx context.Context, step Step, _ string) (Verdict, error) {
	if err := sleep(ctx, step.Duration); err != nil {
		return nil, err
	}
	switch step.ID {
	case StepPhoneCheck:
		return PhoneVerdict{Verified: true, Confidence: gateway.ConfidenceHigh}, nil
	case StepSIMCheck:
		e.mu.Lock()
		draw := e.rnd.Float64()
		e.mu.Unlock()
		if draw < e.riskProbability {
			return SIMSwapVerdict{Result: SIMSwapRiskDetected}, nil
		}
		return SIMSwapVerdict{Result: SIMSwapSecure}, nil
	case StepBiometric:
		return BiometricVerdict{}, nil
	default:
		return nil, fmt.Errorf("unknown step %q", step.ID)
	}
}

// ProviderExecutor answers the number and SIM steps through a gateway.Provider.
// The biometric step has no gateway operation and waits its duration.
type ProviderExecutor struct {
	provider gateway.Provider
}

// NewProviderExecutor wraps provider.
func NewProviderExecutor(provider gateway.Provider) *ProviderExecutor {
	return &ProviderExecutor{provider: provider}
}

// Execute calls the provider operation matching step.
func (e *ProviderExecutor) Execute(ctx context.Context, step Step, phone string) (Verdict, error) {
	switch step.ID {
	case StepPhoneCheck:
		res, err := e.provider.VerifyNumber(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("verify number: %w", err)
		}
		return PhoneVerdict{Verified: res.Verified, Confidence: res.Confidence}, nil
	case StepSIMCheck:
		res, err := e.provider.CheckSIMSwap(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("check sim swap: %w", err)
		}
		if res.Swapped {
			return SIMSwapVerdict{Result: SIMSwapRiskDetected}, nil
		}
		return SIMSwapVerdict{Result: SIMSwapSecure}, nil
	case StepBiometric:
		if err := sleep(ctx, step.Duration); err != nil {
			return nil, err
		}
		return BiometricVerdict{}, nil
	default:
		return nil, fmt.Errorf("unknown step %q", step.ID)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
