package domain

import (
	"context"

	"github.com/google/uuid"
)

// Text is one rendered SMS for one or more mobiles.
type Text struct {
	TenantID uuid.UUID
	// Provider forces a transport ("gateway" or "twilio"); empty defers to tenant settings.
	Provider string
	From     string
	To       []string
	Body     string
	// Overrides holds channel-config credentials keyed like the settings keys.
	Overrides map[string]string
}

// Sender is a pluggable SMS transport with per-tenant configuration.
type Sender interface {
	Send(ctx context.Context, t Text) error
}
