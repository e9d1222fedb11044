package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

const DefaultFromEmail = "onboarding@resend.dev"

type ResendEmailSender struct {
	client *resend.Client
	From   string
}

func NewResendEmailSender(apiKey string, from string) *ResendEmailSender {
	if strings.TrimSpace(from) == "" {
		from = DefaultFromEmail
	}
	if strings.TrimSpace(apiKey) == "" {
		return &ResendEmailSender{From: from}
	}
	return &ResendEmailSender{
		client: resend.NewClient(apiKey),
		From:   from,
	}
}

func (s *ResendEmailSender) SendEmail(ctx context.Context, message EmailMessage) error {
	if s.client == nil {
		return ErrEmailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	request := &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{message.To},
		Subject: message.Subject,
		Html:    message.HTML,
		Text:    message.Text,
	}
	if _, err := s.client.Emails.Send(request); err != nil {
		return fmt.Errorf("resend send email: %w", err)
	}
	return nil
}
