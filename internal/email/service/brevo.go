package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corvusHold/courier/internal/config"
	edomain "github.com/corvusHold/courier/internal/email/domain"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

var _ edomain.Sender = (*Brevo)(nil)

type Brevo struct {
	cfg      config.Config
	settings sdomain.Service
	http     *http.Client
}

func NewBrevo(settings sdomain.Service, cfg config.Config) *Brevo {
	return &Brevo{settings: settings, cfg: cfg, http: &http.Client{Timeout: 10 * time.Second}}
}

type brevoAddress struct {
	Email string `json:"email"`
}

type brevoEmail struct {
	To          []brevoAddress `json:"to"`
	Sender      brevoAddress   `json:"sender"`
	Subject     string         `json:"subject"`
	TextContent string         `json:"textContent,omitempty"`
	HTMLContent string         `json:"htmlContent,omitempty"`
}

func (b *Brevo) Send(ctx context.Context, env edomain.Envelope) error {
	apiKey := lookup(ctx, b.settings, env, sdomain.KeyBrevoAPIKey, b.cfg.BrevoAPIKey)
	sender := env.From
	if sender == "" {
		sender = lookup(ctx, b.settings, env, sdomain.KeyBrevoSender, b.cfg.BrevoSender)
	}
	if apiKey == "" || sender == "" {
		return fmt.Errorf("brevo not configured")
	}
	payload := brevoEmail{Sender: brevoAddress{Email: sender}, Subject: env.Subject}
	for _, to := range env.To {
		payload.To = append(payload.To, brevoAddress{Email: to})
	}
	if looksLikeHTML(env.Body) {
		payload.HTMLContent = env.Body
	} else {
		payload.TextContent = env.Body
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := strings.TrimRight(b.cfg.BrevoBaseURL, "/") + "/v3/smtp/email"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", apiKey)
	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("brevo send failed: %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}
