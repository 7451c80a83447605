package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"

	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// ListOptions filters a tenant's channel configs or templates.
type ListOptions struct {
	Channel  ddomain.ChannelType // empty means both channels
	Query    string
	Enabled  int // -1 any, 1 enabled, 0 disabled
	Page     int
	PageSize int
}

// Page holds one page of items plus pagination metadata.
type Page[T any] struct {
	Items      []T
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

// Repository persists channel configs and templates.
type Repository interface {
	CreateConfig(ctx context.Context, c ddomain.ChannelConfig) error
	GetConfig(ctx context.Context, tenantID, id uuid.UUID) (ddomain.ChannelConfig, error)
	ListConfigs(ctx context.Context, tenantID uuid.UUID, opts ListOptions, limit, offset int) ([]ddomain.ChannelConfig, int64, error)
	SetConfigEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error

	CreateTemplate(ctx context.Context, t ddomain.Template) error
	GetTemplate(ctx context.Context, tenantID, id uuid.UUID) (ddomain.Template, error)
	ListTemplates(ctx context.Context, tenantID uuid.UUID, opts ListOptions, limit, offset int) ([]ddomain.Template, int64, error)
	SetTemplateEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error
}

// Service manages the channel configs and templates the dispatcher reads.
type Service interface {
	CreateConfig(ctx context.Context, c ddomain.ChannelConfig) (ddomain.ChannelConfig, error)
	GetConfig(ctx context.Context, tenantID, id uuid.UUID) (ddomain.ChannelConfig, error)
	ListConfigs(ctx context.Context, tenantID uuid.UUID, opts ListOptions) (Page[ddomain.ChannelConfig], error)
	SetConfigEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error

	CreateTemplate(ctx context.Context, t ddomain.Template) (ddomain.Template, error)
	GetTemplate(ctx context.Context, tenantID, id uuid.UUID) (ddomain.Template, error)
	ListTemplates(ctx context.Context, tenantID uuid.UUID, opts ListOptions) (Page[ddomain.Template], error)
	SetTemplateEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error
}
