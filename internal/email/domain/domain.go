package domain

import (
	"context"

	"github.com/google/uuid"
)

// Envelope is one rendered email ready for a transport.
type Envelope struct {
	TenantID uuid.UUID
	// Provider forces a transport ("smtp" or "brevo"); empty defers to tenant settings.
	Provider string
	From     string
	To       []string
	Subject  string
	Body     string
	// Overrides holds channel-config credentials that take precedence over tenant settings,
	// keyed like the settings keys (e.g. "email.smtp.host").
	Overrides map[string]string
}

// Sender is a pluggable email transport with per-tenant configuration.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}
