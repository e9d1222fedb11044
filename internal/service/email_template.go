package service

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const verificationSubject = "Verify Your Email - Serenity Suites"

var verificationHTML = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Verify Your Email - Serenity Suites</title>
  <style>
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0; background-color: #f8f9fa; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; overflow: hidden; }
    .header { background: linear-gradient(135deg, #d97706 0%, #f59e0b 100%); padding: 40px 20px; text-align: center; }
    .header h1 { color: white; margin: 0; font-size: 28px; font-weight: 600; }
    .content { padding: 40px 20px; text-align: center; }
    .code-box { background-color: #f8f9fa; border: 2px dashed #d97706; border-radius: 12px; padding: 30px; margin: 30px 0; }
    .code { font-size: 48px; font-weight: bold; color: #d97706; letter-spacing: 8px; font-family: 'Courier New', monospace; }
    .expiry { background-color: #fef3c7; border: 1px solid #f59e0b; border-radius: 8px; padding: 15px; margin: 20px 0; color: #92400e; }
    .footer { background-color: #f8f9fa; padding: 20px; text-align: center; color: #666; font-size: 14px; }
    .brand { color: #d97706; font-weight: 600; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>Serenity Suites</h1></div>
    <div class="content">
      <p>Welcome to Serenity Suites, <strong>{{.Name}}</strong>!</p>
      <p>Thank you for creating an account with us. To complete your registration, please use the verification code below:</p>
      <div class="code-box"><div class="code">{{.Code}}</div></div>
      <div class="expiry">This code will expire in <strong>{{.Expiry}}</strong></div>
      <p>If you didn't create this account, please ignore this email.</p>
    </div>
    <div class="footer">
      <p>&copy; {{.Year}} <span class="brand">Serenity Suites</span>. All rights reserved.</p>
      <p>This is an automated message, please do not reply.</p>
    </div>
  </div>
</body>
</html>
`))

type verificationView struct {
	Name   string
	Code   string
	Expiry string
	Year   int
}

// BuildVerificationEmail renders the registration code mail. Name is escaped.
func BuildVerificationEmail(to string, name string, code string, ttl time.Duration, now time.Time) (EmailMessage, error) {
	view := verificationView{
		Name:   name,
		Code:   code,
		Expiry: formatExpiry(ttl),
		Year:   now.Year(),
	}

	var html bytes.Buffer
	if err := verificationHTML.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("render verification email: %w", err)
	}

	text := fmt.Sprintf(
		"Welcome to Serenity Suites, %s!\n\nYour verification code is: %s\nThis code will expire in %s.\n\nIf you didn't create this account, please ignore this email.\n",
		name, code, view.Expiry,
	)

	return EmailMessage{
		To:      to,
		Subject: verificationSubject,
		HTML:    html.String(),
		Text:    text,
	}, nil
}

func formatExpiry(ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
