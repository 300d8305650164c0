package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/anyrouter/checkin/internal/config"
)

// Mailer sends report emails over SMTP. It tries implicit TLS on 465 first
// and falls back to STARTTLS on 587, which covers the common providers the
// original deployment used.
type Mailer struct {
	User   string
	Pass   string
	To     string
	Server string
}

// NewMailer builds a Mailer. When no SMTP server is configured the server is
// derived from the user's mail domain ("smtp." + domain).
func NewMailer(cfg config.NotifyConfig) *Mailer {
	server := cfg.SMTPServer
	if server == "" {
		if _, domain, found := strings.Cut(cfg.EmailUser, "@"); found {
			server = "smtp." + domain
		}
	}
	return &Mailer{
		User:   cfg.EmailUser,
		Pass:   cfg.EmailPass,
		To:     cfg.EmailTo,
		Server: server,
	}
}

// Name implements Channel.
func (m *Mailer) Name() string { return "Email" }

// Deliver implements Channel for the plain-text fan-out path.
func (m *Mailer) Deliver(ctx context.Context, title, content string, kind Kind) error {
	return m.Send(ctx, title, content, kind)
}

// Send sends one message, HTML or plain text.
func (m *Mailer) Send(ctx context.Context, title, content string, kind Kind) error {
	if m.Server == "" {
		return fmt.Errorf("no SMTP server configured")
	}

	msg := m.buildMessage(title, content, kind)

	if err := m.sendTLS(msg); err != nil {
		errStartTLS := m.sendStartTLS(msg)
		if errStartTLS != nil {
			return fmt.Errorf("smtps: %v; starttls: %w", err, errStartTLS)
		}
	}
	return nil
}

func (m *Mailer) buildMessage(title, content string, kind Kind) []byte {
	contentType := "text/plain"
	if kind == KindHTML {
		contentType = "text/html"
	}
	headers := []string{
		fmt.Sprintf("From: Check-in Assistant <%s>", m.User),
		fmt.Sprintf("To: %s", m.To),
		fmt.Sprintf("Subject: %s", title),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: %s; charset=utf-8", contentType),
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + content + "\r\n")
}

// sendTLS delivers over implicit TLS on port 465.
func (m *Mailer) sendTLS(msg []byte) error {
	conn, err := tls.Dial("tcp", m.Server+":465", &tls.Config{ServerName: m.Server})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}

	client, err := smtp.NewClient(conn, m.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	return m.submit(client, msg)
}

// sendStartTLS delivers over STARTTLS on port 587.
func (m *Mailer) sendStartTLS(msg []byte) error {
	client, err := smtp.Dial(m.Server + ":587")
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.Server}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	return m.submit(client, msg)
}

func (m *Mailer) submit(client *smtp.Client, msg []byte) error {
	auth := smtp.PlainAuth("", m.User, m.Pass, m.Server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.User); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(m.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}
