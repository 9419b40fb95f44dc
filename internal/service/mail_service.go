package service

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/secureexam/portal-backend/internal/config"
)

// SMTPMailer delivers mail over plain SMTP with optional auth.
type SMTPMailer struct {
	cfg *config.Config
}

// NewSMTPMailer creates a Mailer backed by the configured SMTP relay.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one HTML message.
func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort

	msg := []byte("From: " + m.cfg.SMTPFromAddress + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" + body)

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.SMTPFromAddress, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func verificationEmailBody(link string) string {
	return "<h2>Welcome to Secure Exam Portal!</h2>" +
		"<p>Please click the link below to verify your email:</p>" +
		fmt.Sprintf(`<a href="%s">%s</a>`, link, link) +
		"<p>This link will expire in 24 hours.</p>"
}

func otcEmailBody(code string, validity time.Duration) string {
	return "<h2>Login Verification</h2>" +
		fmt.Sprintf(`<p>Your verification code is: <strong style="font-size: 24px;">%s</strong></p>`, code) +
		fmt.Sprintf("<p>This code is valid for %d minutes.</p>", int(validity.Minutes())) +
		"<p>If you didn't request this, please ignore this email.</p>"
}
