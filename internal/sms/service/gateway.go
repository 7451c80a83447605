package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corvusHold/courier/internal/config"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
	smsdomain "github.com/corvusHold/courier/internal/sms/domain"
)

var _ smsdomain.Sender = (*Gateway)(nil)

// Gateway posts form-encoded messages to an HTTP SMS gateway. Multiple mobiles go out in
// one request as a comma-separated list.
type Gateway struct {
	cfg      config.Config
	settings sdomain.Service
	http     *http.Client
}

func NewGateway(settings sdomain.Service, cfg config.Config) *Gateway {
	return &Gateway{settings: settings, cfg: cfg, http: &http.Client{Timeout: 10 * time.Second}}
}

func (g *Gateway) Send(ctx context.Context, t smsdomain.Text) error {
	if len(t.To) == 0 {
		return fmt.Errorf("sms gateway: no recipients")
	}
	endpoint := lookup(ctx, g.settings, t, sdomain.KeySMSGatewayURL, g.cfg.SMSGatewayURL)
	apiKey := lookup(ctx, g.settings, t, sdomain.KeySMSGatewayAPIKey, g.cfg.SMSGatewayAPIKey)
	sender := t.From
	if sender == "" {
		sender = lookup(ctx, g.settings, t, sdomain.KeySMSGatewaySender, g.cfg.SMSGatewaySender)
	}
	if endpoint == "" {
		return fmt.Errorf("sms gateway not configured")
	}

	form := url.Values{}
	form.Set("senderid", sender)
	form.Set("msgType", "text")
	form.Set("msg", t.Body)
	form.Set("mobile", strings.Join(t.To, ","))
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if apiKey != "" {
		req.Header.Set("apikey", apiKey)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway http: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
