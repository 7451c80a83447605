package service

import (
	"context"
	"encoding/json"
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

var _ smsdomain.Sender = (*Twilio)(nil)

// Twilio sends through the Messages REST resource, one request per mobile.
type Twilio struct {
	cfg      config.Config
	settings sdomain.Service
	http     *http.Client
}

func NewTwilio(settings sdomain.Service, cfg config.Config) *Twilio {
	return &Twilio{settings: settings, cfg: cfg, http: &http.Client{Timeout: 10 * time.Second}}
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (tw *Twilio) Send(ctx context.Context, t smsdomain.Text) error {
	sid := lookup(ctx, tw.settings, t, sdomain.KeyTwilioAccountSID, tw.cfg.TwilioAccountSID)
	token := lookup(ctx, tw.settings, t, sdomain.KeyTwilioAuthToken, tw.cfg.TwilioAuthToken)
	from := t.From
	if from == "" {
		from = lookup(ctx, tw.settings, t, sdomain.KeyTwilioFrom, tw.cfg.TwilioFromNumber)
	}
	if sid == "" || token == "" || from == "" {
		return fmt.Errorf("twilio not configured")
	}
	endpoint := strings.TrimRight(tw.cfg.TwilioBaseURL, "/") + "/2010-04-01/Accounts/" + url.PathEscape(sid) + "/Messages.json"
	for _, to := range t.To {
		if err := tw.post(ctx, endpoint, sid, token, from, to, t.Body); err != nil {
			return err
		}
	}
	return nil
}

func (tw *Twilio) post(ctx context.Context, endpoint, sid, token, from, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	req.SetBasicAuth(sid, token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := tw.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio http: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var te twilioError
		if json.Unmarshal(raw, &te) == nil && te.Message != "" {
			return fmt.Errorf("twilio send to %s failed: %d %s", to, te.Code, te.Message)
		}
		return fmt.Errorf("twilio send to %s failed: %s", to, resp.Status)
	}
	return nil
}
