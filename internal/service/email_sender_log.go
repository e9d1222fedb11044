package service

import (
	"context"

	"serenity/internal/utils"

	"github.com/sirupsen/logrus"
)

// LogEmailSender writes outgoing mail to the log instead of delivering it.
// Used when no Resend API key is configured.
type LogEmailSender struct {
	Log *logrus.Logger
}

func (s LogEmailSender) SendEmail(ctx context.Context, message EmailMessage) error {
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"to":      utils.MaskEmail(message.To),
		"subject": message.Subject,
		"body":    message.Text,
	}).Info("email not delivered, no provider configured")
	return nil
}
