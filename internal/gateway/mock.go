package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultNumberLatency   = 2 * time.Second
	defaultSIMSwapLatency  = 1500 * time.Millisecond
	defaultRealTimeLatency = 3 * time.Second

	unusualAmountThreshold = 5_000 // €50.00
	simChangeWindow        = 30 * 24 * time.Hour
)

// Latencies configures how long each mock operation takes.
type Latencies struct {
	Number   time.Duration
	SIMSwap  time.Duration
	RealTime time.Duration
}

// DefaultLatencies mirrors the operator sandbox timings.
func DefaultLatencies() Latencies {
	return Latencies{Number: defaultNumberLatency, SIMSwap: defaultSIMSwapLatency, RealTime: defaultRealTimeLatency}
}

// MockProvider answers every operation after a fixed latency with uniformly
// random verdicts. It is safe for concurrent use.
type MockProvider struct {
	latencies Latencies
	now       func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// MockOption customises a MockProvider.
type MockOption func(*MockProvider)

// WithLatencies overrides the default latencies.
func WithLatencies(l Latencies) MockOption {
	return func(m *MockProvider) { m.latencies = l }
}

// WithRand sets the random source, for reproducible verdicts.
func WithRand(r *rand.Rand) MockOption {
	return func(m *MockProvider) { m.rnd = r }
}

// WithClock sets the clock used for timestamps and the unusual-time factor.
func WithClock(now func() time.Time) MockOption {
	return func(m *MockProvider) { m.now = now }
}

// NewMockProvider builds a mock provider.
func NewMockProvider(opts ...MockOption) *MockProvider {
	m := &MockProvider{
		latencies: DefaultLatencies(),
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// VerifyNumber always verifies the number; confidence and risk are random.
func (m *MockProvider) VerifyNumber(ctx context.Context, _ string) (NumberVerification, error) {
	if err := wait(ctx, m.latencies.Number); err != nil {
		return NumberVerification{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	confidence := ConfidenceMedium
	if m.rnd.Float64() > 0.1 {
		confidence = ConfidenceHigh
	}
	return NumberVerification{
		Verified:          true,
		Confidence:        confidence,
		Timestamp:         m.now().UTC(),
		DeviceFingerprint: "device_" + uuid.NewString()[:9],
		Risk: RiskAssessment{
			FraudProbability: m.rnd.Float64() * 0.2,
			SIMSwapDetected:  m.rnd.Float64() > 0.95,
		},
	}, nil
}

// CheckSIMSwap reports a swap 10% of the time.
func (m *MockProvider) CheckSIMSwap(ctx context.Context, _ string) (SIMSwapCheck, error) {
	if err := wait(ctx, m.latencies.SIMSwap); err != nil {
		return SIMSwapCheck{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	res := SIMSwapCheck{Swapped: m.rnd.Float64() > 0.9, RiskLevel: RiskLow}
	if m.rnd.Float64() > 0.5 {
		changed := m.now().Add(-time.Duration(m.rnd.Float64() * float64(simChangeWindow))).UTC()
		res.LastSIMChange = &changed
	}
	if m.rnd.Float64() > 0.8 {
		res.RiskLevel = RiskHigh
	}
	return res, nil
}

// RealTimeVerification screens a payment against four random or clock-derived factors.
func (m *MockProvider) RealTimeVerification(ctx context.Context, req RealTimeRequest) (RealTimeDecision, error) {
	if err := wait(ctx, m.latencies.RealTime); err != nil {
		return RealTimeDecision{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	hour := m.now().Hour()
	factors := RiskFactors{
		UnusualLocation: m.rnd.Float64() > 0.8,
		UnusualAmount:   req.Amount > unusualAmountThreshold && m.rnd.Float64() > 0.7,
		UnusualTime:     hour < 6 || hour > 23,
		SIMSwapRisk:     m.rnd.Float64() > 0.95,
	}
	return Decide(factors), nil
}

func wait(ctx context.Context, d time.Duration) error {
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
