package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MessageRepository persists outbound units.
type MessageRepository interface {
	// Save inserts the unit or updates it when the id already exists.
	Save(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, channel ChannelType, id uuid.UUID) (*Message, error)
	// Delete soft-deletes (or hard-deletes) the tenant's units by id and returns the affected row count.
	Delete(ctx context.Context, channel ChannelType, tenantID uuid.UUID, ids []uuid.UUID, hard bool) (int64, error)
	// DeleteOlderThan purges units created before cutoff; a nil tenantID spans all tenants.
	DeleteOlderThan(ctx context.Context, channel ChannelType, tenantID *uuid.UUID, cutoff time.Time) (int64, error)
	// ClaimDue leases PENDING units whose expected send date is not after now
	// until leaseUntil. A leased unit is not returned again before the lease lapses.
	ClaimDue(ctx context.Context, channel ChannelType, now, leaseUntil time.Time, limit int) ([]*Message, error)
}

// Directory answers recipient lookups. Rows are returned unfiltered; blank addresses are
// dropped by the resolver.
type Directory interface {
	ByUserIDs(ctx context.Context, ids []uuid.UUID) ([]Contact, error)
	ByTenants(ctx context.Context, tenantIDs []uuid.UUID, limit, offset int) ([]Contact, error)
	ByDepartments(ctx context.Context, deptIDs []uuid.UUID, limit, offset int) ([]Contact, error)
	ByGroups(ctx context.Context, groupIDs []uuid.UUID, limit, offset int) ([]Contact, error)
	ByRoles(ctx context.Context, tenantID uuid.UUID, roles []string, limit, offset int) ([]Contact, error)
	All(ctx context.Context, limit, offset int) ([]Contact, error)
}

// ChannelConfigRepository loads channel transports.
type ChannelConfigRepository interface {
	Enabled(ctx context.Context, tenantID uuid.UUID, channel ChannelType) (ChannelConfig, error)
	GetByID(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (ChannelConfig, error)
}

// TemplateRepository loads message templates.
type TemplateRepository interface {
	GetByCode(ctx context.Context, tenantID uuid.UUID, channel ChannelType, code string) (Template, error)
}

// Renderer turns template text plus parameters into the final text.
type Renderer interface {
	Render(name, text string, params map[string]string) (string, error)
}

// Provider is the transport boundary. Errors should be tagged with NewProviderError
// where the category is known; Classify handles the rest.
type Provider interface {
	SendMessage(ctx context.Context, cfg ChannelConfig, tpl Template, m *Message) error
	// SendBatchMessage is used when the unit carries more than one parameter set.
	SendBatchMessage(ctx context.Context, cfg ChannelConfig, tpl Template, m *Message) error
}

// Channel is the per-channel capability the dispatcher is parameterised by.
type Channel interface {
	Provider
	Type() ChannelType
	// Address picks the channel's address out of a directory row.
	Address(c Contact) string
	// PerDestination reports whether non-batch units are sent one provider call per address.
	PerDestination() bool
	// RequiresTemplate reports whether every send must reference a template.
	RequiresTemplate() bool
}

// CodeStore is the verification-code cache as seen by the dispatcher.
type CodeStore interface {
	GenerateCode() string
	CheckResend(ctx context.Context, bizKey, destination string) error
	Issue(ctx context.Context, bizKey, destination, code string, validSeconds int) error
}
