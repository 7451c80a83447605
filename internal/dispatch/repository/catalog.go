package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

var (
	_ domain.ChannelConfigRepository = (*Catalog)(nil)
	_ domain.TemplateRepository      = (*Catalog)(nil)
)

// Catalog serves channel configs and message templates.
type Catalog struct{ pool *pgxpool.Pool }

func NewCatalog(pool *pgxpool.Pool) *Catalog { return &Catalog{pool: pool} }

const configColumns = `id, tenant_id, channel, name, provider, enabled, sender, subject_prefix, settings`

func scanConfig(row pgx.Row) (domain.ChannelConfig, error) {
	var (
		c  domain.ChannelConfig
		ch string
	)
	if err := row.Scan(&c.ID, &c.TenantID, &ch, &c.Name, &c.Provider, &c.Enabled, &c.From, &c.SubjectPrefix, &c.Settings); err != nil {
		return c, err
	}
	c.Channel = domain.ChannelType(ch)
	return c, nil
}

// Enabled returns the most recently updated enabled config of the channel.
func (c *Catalog) Enabled(ctx context.Context, tenantID uuid.UUID, ch domain.ChannelType) (domain.ChannelConfig, error) {
	query := `SELECT ` + configColumns + ` FROM channel_configs
		WHERE tenant_id = $1 AND channel = $2 AND enabled
		ORDER BY updated_at DESC
		LIMIT 1`
	cfg, err := scanConfig(c.pool.QueryRow(ctx, query, tenantID, string(ch)))
	if errors.Is(err, pgx.ErrNoRows) {
		return cfg, domain.ErrChannelUnavailable
	}
	if err != nil {
		return cfg, fmt.Errorf("load enabled %s channel: %w", ch, err)
	}
	return cfg, nil
}

func (c *Catalog) GetByID(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (domain.ChannelConfig, error) {
	query := `SELECT ` + configColumns + ` FROM channel_configs WHERE tenant_id = $1 AND id = $2`
	cfg, err := scanConfig(c.pool.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return cfg, domain.ErrChannelUnavailable
	}
	if err != nil {
		return cfg, fmt.Errorf("load channel config %s: %w", id, err)
	}
	return cfg, nil
}

func (c *Catalog) GetByCode(ctx context.Context, tenantID uuid.UUID, ch domain.ChannelType, code string) (domain.Template, error) {
	const query = `
		SELECT id, tenant_id, channel, code, subject, content, code_validity_seconds, enabled
		FROM message_templates
		WHERE tenant_id = $1 AND channel = $2 AND code = $3`
	var (
		t   domain.Template
		chs string
	)
	err := c.pool.QueryRow(ctx, query, tenantID, string(ch), code).
		Scan(&t.ID, &t.TenantID, &chs, &t.Code, &t.Subject, &t.Content, &t.CodeValiditySeconds, &t.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, domain.ErrTemplateNotFound
	}
	if err != nil {
		return t, fmt.Errorf("load template %s: %w", code, err)
	}
	t.Channel = domain.ChannelType(chs)
	return t, nil
}
