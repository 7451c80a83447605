package service

import (
	"context"
	"fmt"

	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
	smsdomain "github.com/corvusHold/courier/internal/sms/domain"
)

var _ ddomain.Channel = (*Channel)(nil)

// Channel adapts an SMS Sender to the dispatcher's channel capability. Every SMS is
// template-based.
type Channel struct {
	sender   smsdomain.Sender
	renderer ddomain.Renderer
}

func NewChannel(sender smsdomain.Sender, renderer ddomain.Renderer) *Channel {
	return &Channel{sender: sender, renderer: renderer}
}

func (c *Channel) Type() ddomain.ChannelType        { return ddomain.ChannelSMS }
func (c *Channel) Address(ct ddomain.Contact) string { return ct.Mobile }
func (c *Channel) PerDestination() bool              { return false }
func (c *Channel) RequiresTemplate() bool            { return true }

func text(cfg ddomain.ChannelConfig, m *ddomain.Message, to []string, body string) smsdomain.Text {
	return smsdomain.Text{
		TenantID:  m.TenantID,
		Provider:  cfg.Provider,
		From:      m.From,
		To:        to,
		Body:      body,
		Overrides: cfg.Settings,
	}
}

// SendMessage renders the template once and sends it to all destinations in one call.
func (c *Channel) SendMessage(ctx context.Context, cfg ddomain.ChannelConfig, tpl ddomain.Template, m *ddomain.Message) error {
	if len(m.Destinations) == 0 {
		return fmt.Errorf("sms: unit %s has no destinations", m.ID)
	}
	body, err := c.renderer.Render(tpl.Code, tpl.Content, m.Params)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, text(cfg, m, m.Destinations, body))
}

// SendBatchMessage renders one text per destination from its parameter set merged over
// the shared parameters.
func (c *Channel) SendBatchMessage(ctx context.Context, cfg ddomain.ChannelConfig, tpl ddomain.Template, m *ddomain.Message) error {
	for i, dest := range m.Destinations {
		params := make(map[string]string, len(m.Params))
		for k, v := range m.Params {
			params[k] = v
		}
		if i < len(m.ParamSets) {
			for k, v := range m.ParamSets[i] {
				params[k] = v
			}
		}
		body, err := c.renderer.Render(tpl.Code, tpl.Content, params)
		if err != nil {
			return err
		}
		if err := c.sender.Send(ctx, text(cfg, m, []string{dest}, body)); err != nil {
			return fmt.Errorf("sms to %s: %w", dest, err)
		}
	}
	return nil
}
