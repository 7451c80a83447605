package service

import (
	"context"
	"strings"

	edomain "github.com/corvusHold/courier/internal/email/domain"
	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

// lookup resolves a transport setting: channel overrides, then tenant settings, then def.
func lookup(ctx context.Context, settings sdomain.Service, env edomain.Envelope, key, def string) string {
	if v := strings.TrimSpace(env.Overrides[key]); v != "" {
		return v
	}
	if settings == nil {
		return def
	}
	tid := env.TenantID
	v, _ := settings.GetString(ctx, key, &tid, def)
	return v
}
