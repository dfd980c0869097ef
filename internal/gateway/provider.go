// Package gateway defines the network verification collaborator consulted by
// the verification sequencer and a randomized mock of it.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by providers that cannot reach the operator network.
var ErrUnavailable = errors.New("verification gateway unavailable")

// Confidence grades a number verification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// RiskLevel grades operator-reported risk.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Method is the extra verification a real-time decision asks for.
type Method string

const (
	MethodSMSOnly          Method = "sms_only"
	MethodBiometricPlusSMS Method = "biometric_plus_sms"
)

// Provider is a connector to the operator verification APIs. Implementations
// have no side effects beyond returning a verdict.
type Provider interface {
	VerifyNumber(ctx context.Context, phone string) (NumberVerification, error)
	CheckSIMSwap(ctx context.Context, phone string) (SIMSwapCheck, error)
	RealTimeVerification(ctx context.Context, req RealTimeRequest) (RealTimeDecision, error)
}

// RiskAssessment accompanies a number verification.
type RiskAssessment struct {
	FraudProbability     float64 `json:"fraud_probability"`
	SIMSwapDetected      bool    `json:"sim_swap_detected"`
	DeviceChangeDetected bool    `json:"device_change_detected"`
}

// NumberVerification is the answer to VerifyNumber.
type NumberVerification struct {
	Verified          bool           `json:"verified"`
	Confidence        Confidence     `json:"confidence"`
	Timestamp         time.Time      `json:"timestamp"`
	DeviceFingerprint string         `json:"device_fingerprint"`
	Risk              RiskAssessment `json:"risk_assessment"`
}

// SIMSwapCheck is the answer to CheckSIMSwap.
type SIMSwapCheck struct {
	Swapped       bool       `json:"sim_swapped"`
	LastSIMChange *time.Time `json:"last_sim_change"`
	RiskLevel     RiskLevel  `json:"risk_level"`
}

// RealTimeRequest describes a payment to screen.
type RealTimeRequest struct {
	Phone    string
	Amount   int64 // minor units
	Location string
}

// RiskFactors lists the signals a real-time decision is built from.
type RiskFactors struct {
	UnusualLocation bool `json:"unusual_location"`
	UnusualAmount   bool `json:"unusual_amount"`
	UnusualTime     bool `json:"unusual_time"`
	SIMSwapRisk     bool `json:"sim_swap_risk"`
}

// Count returns how many factors are raised.
func (f RiskFactors) Count() int {
	n := 0
	for _, raised := range []bool{f.UnusualLocation, f.UnusualAmount, f.UnusualTime, f.SIMSwapRisk} {
		if raised {
			n++
		}
	}
	return n
}

// RealTimeDecision is the answer to RealTimeVerification.
type RealTimeDecision struct {
	VerificationRequired bool        `json:"verification_required"`
	RiskLevel            RiskLevel   `json:"risk_level"`
	RiskFactors          RiskFactors `json:"risk_factors"`
	Method               Method      `json:"verification_method"`
	Approved             bool        `json:"approved"`
}

// Decide derives a decision from raised factors.
func Decide(f RiskFactors) RealTimeDecision {
	total := f.Count()
	d := RealTimeDecision{
		VerificationRequired: total > 0,
		RiskLevel:            RiskLow,
		RiskFactors:          f,
		Method:               MethodSMSOnly,
		Approved:             total < 3,
	}
	switch {
	case total > 2:
		d.RiskLevel = RiskHigh
	case total > 0:
		d.RiskLevel = RiskMedium
	}
	if total > 1 {
		d.Method = MethodBiometricPlusSMS
	}
	return d
}
