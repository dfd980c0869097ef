package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindVerificationCompleted is sent when a beneficiary passes verification.
	KindVerificationCompleted = "verification.completed"
	// KindVerificationFailed is sent when an attempt ends in the failed phase.
	KindVerificationFailed = "verification.failed"
	// KindSIMSwapRisk is sent alongside a completion that detected a SIM swap.
	KindSIMSwapRisk = "security.sim_swap_risk"
)

// Message describes a notification payload.
type Message struct {
	Kind        string            `json:"kind"`
	Destination string            `json:"destination"`
	Body        string            `json:"body"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"body", message.Body,
		"attributes", message.Attributes,
	)
	return nil
}

// Multi fans a message out to every notifier and returns the first error.
type Multi []Notifier

// Send delivers message to all notifiers, even after a failure.
func (m Multi) Send(ctx context.Context, message Message) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
