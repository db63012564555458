package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"procurement/internal/config"
)

// Sender delivers a single HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !strings.Contains(to, "@") {
		return fmt.Errorf("notify.SMTPSender.Send: invalid email address: %s", to)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify.SMTPSender.Send: %w", err)
	}

	msg, err := buildMessage(s.cfg.From, to, subject, htmlBody)
	if err != nil {
		return fmt.Errorf("notify.SMTPSender.Send: %w", err)
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	err = smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
	if err != nil {
		return fmt.Errorf("notify.SMTPSender.Send: to='%s', subject='%s': %w", to, subject, err)
	}
	return nil
}

// buildMessage renders the header block. Addresses must be single line and the
// subject is RFC 2047 encoded, so user supplied titles can never start a new header.
func buildMessage(from, to, subject, htmlBody string) ([]byte, error) {
	for _, addr := range []string{from, to} {
		if strings.ContainsAny(addr, "\r\n") {
			return nil, fmt.Errorf("invalid email address: %q", addr)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String()), nil
}

// LogSender only logs outgoing mail. It is used when SMTP is not configured.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	s.Log.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("email (smtp disabled)")
	return nil
}

// NewSender picks the SMTP sender when it is configured.
func NewSender(cfg config.SMTPConfig, log logrus.FieldLogger) Sender {
	if cfg.Enabled() {
		return NewSMTPSender(cfg)
	}
	return LogSender{Log: log}
}
