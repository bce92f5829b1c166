// Package notification delivers SMS-style messages to borrowers. The sandbox
// has no SMS gateway, so delivery goes to the structured log.
package notification

import (
	"context"
	"log/slog"
)

// Kind tags a message so the gateway can pick a template.
type Kind string

const (
	KindOTP           Kind = "otp"
	KindLoanSubmitted Kind = "loan_submitted"
)

// Message is one outbound text to a phone number.
type Message struct {
	Kind        Kind
	Destination string
	Body        string
}

type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes each message to the logger. OTP bodies are included
// so sandbox users can read their code from the server log.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.LogAttrs(ctx, slog.LevelInfo, "sms queued",
		slog.String("kind", string(message.Kind)),
		slog.String("to", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}
