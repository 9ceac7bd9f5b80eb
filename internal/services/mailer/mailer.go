package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Mailer is the boundary to whatever delivers verification messages. The
// provider is external; the application only hands it an address and a token.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
}

// LogMailer writes the verification mail to the log instead of sending it.
// Used in development and in every environment without a mail provider.
type LogMailer struct {
	lg *zap.SugaredLogger
}

func NewLogMailer(lg *zap.SugaredLogger) *LogMailer {
	return &LogMailer{lg: lg}
}

func (m *LogMailer) SendVerification(_ context.Context, email, token string) error {
	m.lg.Infow("verification mail", "to", email, "token", token)
	return nil
}
