package service

import (
	"context"
	"strings"

	"github.com/corvusHold/courier/internal/config"
	edomain "github.com/corvusHold/courier/internal/email/domain"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

var _ edomain.Sender = (*Router)(nil)

// Router picks the transport per envelope: explicit provider, then the tenant's
// email.provider setting, then the configured default.
type Router struct {
	cfg      config.Config
	settings sdomain.Service
	smtp     edomain.Sender
	brevo    edomain.Sender
}

func NewRouter(settings sdomain.Service, cfg config.Config) *Router {
	return &Router{cfg: cfg, settings: settings, smtp: NewSMTP(settings, cfg), brevo: NewBrevo(settings, cfg)}
}

func (r *Router) Send(ctx context.Context, env edomain.Envelope) error {
	prov := env.Provider
	if prov == "" {
		prov = lookup(ctx, r.settings, env, sdomain.KeyEmailProvider, r.cfg.EmailProvider)
	}
	switch strings.ToLower(prov) {
	case "brevo":
		return r.brevo.Send(ctx, env)
	default:
		return r.smtp.Send(ctx, env)
	}
}
