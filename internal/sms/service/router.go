package service

import (
	"context"
	"strings"

	"github.com/corvusHold/courier/internal/config"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
	smsdomain "github.com/corvusHold/courier/internal/sms/domain"
)

var _ smsdomain.Sender = (*Router)(nil)

// Router picks the transport per text: explicit provider, then the tenant's sms.provider
// setting, then the configured default.
type Router struct {
	cfg      config.Config
	settings sdomain.Service
	gateway  smsdomain.Sender
	twilio   smsdomain.Sender
}

func NewRouter(settings sdomain.Service, cfg config.Config) *Router {
	return &Router{cfg: cfg, settings: settings, gateway: NewGateway(settings, cfg), twilio: NewTwilio(settings, cfg)}
}

func (r *Router) Send(ctx context.Context, t smsdomain.Text) error {
	prov := t.Provider
	if prov == "" {
		prov = lookup(ctx, r.settings, t, sdomain.KeySMSProvider, r.cfg.SMSProvider)
	}
	switch strings.ToLower(prov) {
	case "twilio":
		return r.twilio.Send(ctx, t)
	default:
		return r.gateway.Send(ctx, t)
	}
}
