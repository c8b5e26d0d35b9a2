package notification

import (
	"context"
	"log/slog"
)

const (
	// KindVerificationCode carries a self-issued phone verification code.
	KindVerificationCode = "verification_code"
	// KindPasswordChanged tells the account owner their password was changed.
	KindPasswordChanged = "password_changed"
	// KindPasswordReset tells the account owner their password was reset via OTP.
	KindPasswordReset = "password_reset"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering them.
// Used in development and whenever a provider is not configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"subject", message.Subject,
		"body", message.Body,
	)
	return nil
}
