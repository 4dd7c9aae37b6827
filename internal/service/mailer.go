package service

import (
	"context"

	"go.uber.org/zap"
)

// Mailer delivers transactional mail
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// LogMailer writes mails to the log. Used when no delivery backend is configured.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.Logger.Info("Password reset requested", zap.String("to", to), zap.String("link", link))
	return nil
}
