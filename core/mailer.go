package core

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Mailer delivers transactional mail (verification and reset links). The
// application only depends on this narrow contract; delivery mechanics stay
// out of the core.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer picks the SMTP mailer when a relay host is configured, otherwise
// a logging fallback so development works without mail infrastructure.
func NewMailer(cfg Config) Mailer {
	if cfg.SMTPHost == "" {
		return &LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer sends plain-text mail through a single SMTP relay.
type SMTPMailer struct {
	cfg Config
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	from := m.fromAddress()

	msg := strings.Join([]string{
		"From: " + m.fromHeader(),
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}
	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) fromAddress() string {
	if m.cfg.SMTPFromEmail != "" {
		return m.cfg.SMTPFromEmail
	}
	return m.cfg.SMTPUser
}

func (m *SMTPMailer) fromHeader() string {
	name := strings.TrimSpace(m.cfg.SMTPFromName)
	email := m.fromAddress()
	if name != "" {
		return fmt.Sprintf("%s <%s>", name, email)
	}
	return email
}

// LogMailer writes the mail to the process log instead of delivering it.
type LogMailer struct{}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail (not delivered) to=%s subject=%q\n%s", to, subject, body)
	return nil
}
