package mail

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleMailer logs messages instead of delivering them. Used in
// development and tests where no SendGrid key is configured.
type ConsoleMailer struct {
	logger *zap.Logger
}

// NewConsoleMailer constructs a console mailer.
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{logger: logger}
}

// Send logs the message.
func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	m.logger.Sugar().Infow("email (console)",
		"to", msg.ToEmail,
		"subject", msg.Subject,
		"reference", msg.Reference,
	)
	return nil
}
