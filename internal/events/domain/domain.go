package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is an audit record emitted by the dispatch and verification slices.
// Type examples: "dispatch.unit.success", "dispatch.unit.failure", "verification.code.verified".
// Meta carries channel, message_id, error code and similar details.
type Event struct {
	Type     string
	TenantID uuid.UUID
	UserID   uuid.UUID
	Meta     map[string]string
	Time     time.Time
}

// Publisher publishes events to an external system (log, queue, etc.).
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
