package service

import (
	"context"
	"fmt"

	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
	edomain "github.com/corvusHold/courier/internal/email/domain"
)

var _ ddomain.Channel = (*Channel)(nil)

// Channel adapts an email Sender to the dispatcher's channel capability.
type Channel struct {
	sender   edomain.Sender
	renderer ddomain.Renderer
}

func NewChannel(sender edomain.Sender, renderer ddomain.Renderer) *Channel {
	return &Channel{sender: sender, renderer: renderer}
}

func (c *Channel) Type() ddomain.ChannelType        { return ddomain.ChannelEmail }
func (c *Channel) Address(ct ddomain.Contact) string { return ct.Email }
func (c *Channel) PerDestination() bool              { return true }
func (c *Channel) RequiresTemplate() bool            { return false }

func (c *Channel) render(tpl ddomain.Template, m *ddomain.Message, params map[string]string) (string, string, error) {
	if tpl.Content == "" {
		return m.Subject, m.Body, nil
	}
	body, err := c.renderer.Render(tpl.Code, tpl.Content, params)
	if err != nil {
		return "", "", err
	}
	subject, err := c.renderer.Render(tpl.Code+".subject", m.Subject, params)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func envelope(cfg ddomain.ChannelConfig, m *ddomain.Message, to []string, subject, body string) edomain.Envelope {
	return edomain.Envelope{
		TenantID:  m.TenantID,
		Provider:  cfg.Provider,
		From:      m.From,
		To:        to,
		Subject:   subject,
		Body:      body,
		Overrides: cfg.Settings,
	}
}

// SendMessage sends one email to every destination of the unit.
func (c *Channel) SendMessage(ctx context.Context, cfg ddomain.ChannelConfig, tpl ddomain.Template, m *ddomain.Message) error {
	if len(m.Destinations) == 0 {
		return fmt.Errorf("email: unit %s has no destinations", m.ID)
	}
	subject, body, err := c.render(tpl, m, m.Params)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, envelope(cfg, m, m.Destinations, subject, body))
}

// SendBatchMessage renders each destination with its own parameter set merged over the
// shared parameters and sends them one by one, stopping at the first failure.
func (c *Channel) SendBatchMessage(ctx context.Context, cfg ddomain.ChannelConfig, tpl ddomain.Template, m *ddomain.Message) error {
	for i, dest := range m.Destinations {
		subject, body, err := c.render(tpl, m, paramsFor(m, i))
		if err != nil {
			return err
		}
		if err := c.sender.Send(ctx, envelope(cfg, m, []string{dest}, subject, body)); err != nil {
			return fmt.Errorf("email to %s: %w", dest, err)
		}
	}
	return nil
}

func paramsFor(m *ddomain.Message, i int) map[string]string {
	out := make(map[string]string, len(m.Params))
	for k, v := range m.Params {
		out[k] = v
	}
	if i < len(m.ParamSets) {
		for k, v := range m.ParamSets[i] {
			out[k] = v
		}
	}
	return out
}
