package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/corvusHold/courier/internal/config"
	edomain "github.com/corvusHold/courier/internal/email/domain"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

var _ edomain.Sender = (*SMTP)(nil)

type SMTP struct {
	cfg      config.Config
	settings sdomain.Service
	timeout  time.Duration
}

func NewSMTP(settings sdomain.Service, cfg config.Config) *SMTP {
	return &SMTP{settings: settings, cfg: cfg, timeout: 10 * time.Second}
}

func (s *SMTP) Send(ctx context.Context, env edomain.Envelope) error {
	if len(env.To) == 0 {
		return fmt.Errorf("smtp: no recipients")
	}
	host := lookup(ctx, s.settings, env, sdomain.KeySMTPHost, s.cfg.SMTPHost)
	username := lookup(ctx, s.settings, env, sdomain.KeySMTPUsername, s.cfg.SMTPUsername)
	password := lookup(ctx, s.settings, env, sdomain.KeySMTPPassword, s.cfg.SMTPPassword)
	port, err := strconv.Atoi(lookup(ctx, s.settings, env, sdomain.KeySMTPPort, strconv.Itoa(s.cfg.SMTPPort)))
	if err != nil {
		port = s.cfg.SMTPPort
	}
	from := env.From
	if from == "" {
		from = lookup(ctx, s.settings, env, sdomain.KeySMTPFrom, s.cfg.SMTPFrom)
	}

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if username != "" {
		if err := c.Auth(smtp.PlainAuth("", username, password, host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, to := range env.To {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", to, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(from, env)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func buildMessage(from string, env edomain.Envelope) []byte {
	contentType := "text/plain"
	if looksLikeHTML(env.Body) {
		contentType = "text/html"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(env.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", env.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=utf-8\r\n\r\n", contentType)
	b.WriteString(env.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func looksLikeHTML(body string) bool {
	t := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(t, "<!doctype html") || strings.HasPrefix(t, "<html")
}
