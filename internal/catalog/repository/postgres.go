package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	cdomain "github.com/corvusHold/courier/internal/catalog/domain"
	ddomain "github.com/corvusHold/courier/internal/dispatch/domain"
)

var _ cdomain.Repository = (*Repository)(nil)

type Repository struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Repository { return &Repository{pool: pool} }

const (
	configColumns   = `id, tenant_id, channel, name, provider, enabled, sender, subject_prefix, settings`
	templateColumns = `id, tenant_id, channel, code, subject, content, code_validity_seconds, enabled`
)

func conflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return cdomain.ErrConflict
	}
	return err
}

// filter builds the shared WHERE clause; col is the searchable text column.
func filter(tenantID uuid.UUID, opts cdomain.ListOptions, col string) (string, []any) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}
	if opts.Channel != "" {
		args = append(args, string(opts.Channel))
		conds = append(conds, fmt.Sprintf("channel = $%d", len(args)))
	}
	if opts.Query != "" {
		args = append(args, "%"+opts.Query+"%")
		conds = append(conds, fmt.Sprintf("%s ILIKE $%d", col, len(args)))
	}
	switch opts.Enabled {
	case 1:
		conds = append(conds, "enabled")
	case 0:
		conds = append(conds, "NOT enabled")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanConfig(row pgx.CollectableRow) (ddomain.ChannelConfig, error) {
	var (
		c  ddomain.ChannelConfig
		ch string
	)
	err := row.Scan(&c.ID, &c.TenantID, &ch, &c.Name, &c.Provider, &c.Enabled, &c.From, &c.SubjectPrefix, &c.Settings)
	c.Channel = ddomain.ChannelType(ch)
	return c, err
}

func scanTemplate(row pgx.CollectableRow) (ddomain.Template, error) {
	var (
		t  ddomain.Template
		ch string
	)
	err := row.Scan(&t.ID, &t.TenantID, &ch, &t.Code, &t.Subject, &t.Content, &t.CodeValiditySeconds, &t.Enabled)
	t.Channel = ddomain.ChannelType(ch)
	return t, err
}

func (r *Repository) CreateConfig(ctx context.Context, c ddomain.ChannelConfig) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO channel_configs (`+configColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.TenantID, string(c.Channel), c.Name, c.Provider, c.Enabled, c.From, c.SubjectPrefix, c.Settings)
	if err != nil {
		return fmt.Errorf("insert channel config: %w", conflict(err))
	}
	return nil
}

func (r *Repository) GetConfig(ctx context.Context, tenantID, id uuid.UUID) (ddomain.ChannelConfig, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+configColumns+` FROM channel_configs WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return ddomain.ChannelConfig{}, fmt.Errorf("load channel config: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanConfig)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, cdomain.ErrNotFound
	}
	return c, err
}

func (r *Repository) ListConfigs(ctx context.Context, tenantID uuid.UUID, opts cdomain.ListOptions, limit, offset int) ([]ddomain.ChannelConfig, int64, error) {
	where, args := filter(tenantID, opts, "name")
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM channel_configs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count channel configs: %w", err)
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM channel_configs%s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		configColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list channel configs: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanConfig)
	return items, total, err
}

func (r *Repository) SetConfigEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error {
	return r.setEnabled(ctx, "channel_configs", tenantID, id, enabled)
}

func (r *Repository) CreateTemplate(ctx context.Context, t ddomain.Template) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.TenantID, string(t.Channel), t.Code, t.Subject, t.Content, t.CodeValiditySeconds, t.Enabled)
	if err != nil {
		return fmt.Errorf("insert template: %w", conflict(err))
	}
	return nil
}

func (r *Repository) GetTemplate(ctx context.Context, tenantID, id uuid.UUID) (ddomain.Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM message_templates WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return ddomain.Template{}, fmt.Errorf("load template: %w", err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTemplate)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, cdomain.ErrNotFound
	}
	return t, err
}

func (r *Repository) ListTemplates(ctx context.Context, tenantID uuid.UUID, opts cdomain.ListOptions, limit, offset int) ([]ddomain.Template, int64, error) {
	where, args := filter(tenantID, opts, "code")
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM message_templates`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count templates: %w", err)
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM message_templates%s ORDER BY channel, code LIMIT $%d OFFSET $%d`,
		templateColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list templates: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanTemplate)
	return items, total, err
}

func (r *Repository) SetTemplateEnabled(ctx context.Context, tenantID, id uuid.UUID, enabled bool) error {
	return r.setEnabled(ctx, "message_templates", tenantID, id, enabled)
}

func (r *Repository) setEnabled(ctx context.Context, table string, tenantID, id uuid.UUID, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE `+table+` SET enabled = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, enabled)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return cdomain.ErrNotFound
	}
	return nil
}
