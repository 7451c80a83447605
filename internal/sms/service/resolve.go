package service

import (
	"context"
	"strings"

	sdomain "github.com/corvusHold/courier/internal/settings/domain"
	smsdomain "github.com/corvusHold/courier/internal/sms/domain"
)

// lookup resolves a transport setting: channel overrides, then tenant settings, then def.
func lookup(ctx context.Context, settings sdomain.Service, t smsdomain.Text, key, def string) string {
	if v := strings.TrimSpace(t.Overrides[key]); v != "" {
		return v
	}
	if settings == nil {
		return def
	}
	tid := t.TenantID
	v, _ := settings.GetString(ctx, key, &tid, def)
	return v
}
