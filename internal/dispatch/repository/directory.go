package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

var _ domain.Directory = (*Directory)(nil)

// Directory reads recipients from the directory_* tables. Paged queries are ordered by
// seq DESC so a page is stable while the fan-out walks it.
type Directory struct{ pool *pgxpool.Pool }

func NewDirectory(pool *pgxpool.Pool) *Directory { return &Directory{pool: pool} }

const contactColumns = `u.id, u.seq, COALESCE(u.email, ''), COALESCE(u.mobile, '')`

const activeUser = `u.enabled AND u.deleted_at IS NULL`

func (d *Directory) query(ctx context.Context, what, query string, args ...any) ([]domain.Contact, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", what, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Contact, error) {
		var c domain.Contact
		err := row.Scan(&c.UserID, &c.Seq, &c.Email, &c.Mobile)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", what, err)
	}
	return out, nil
}

func (d *Directory) ByUserIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contact, error) {
	return d.query(ctx, "users", `
		SELECT `+contactColumns+`
		FROM directory_users u
		WHERE u.id = ANY($1) AND `+activeUser+`
		ORDER BY u.seq DESC`, ids)
}

func (d *Directory) ByTenants(ctx context.Context, tenantIDs []uuid.UUID, limit, offset int) ([]domain.Contact, error) {
	return d.query(ctx, "tenants", `
		SELECT `+contactColumns+`
		FROM directory_users u
		WHERE u.tenant_id = ANY($1) AND `+activeUser+`
		ORDER BY u.seq DESC
		LIMIT $2 OFFSET $3`, tenantIDs, limit, offset)
}

func (d *Directory) ByDepartments(ctx context.Context, deptIDs []uuid.UUID, limit, offset int) ([]domain.Contact, error) {
	return d.query(ctx, "departments", `
		SELECT `+contactColumns+`
		FROM directory_users u
		WHERE u.dept_id = ANY($1) AND `+activeUser+`
		ORDER BY u.seq DESC
		LIMIT $2 OFFSET $3`, deptIDs, limit, offset)
}

func (d *Directory) ByGroups(ctx context.Context, groupIDs []uuid.UUID, limit, offset int) ([]domain.Contact, error) {
	return d.query(ctx, "groups", `
		SELECT `+contactColumns+`
		FROM directory_users u
		WHERE `+activeUser+` AND EXISTS (
			SELECT 1 FROM directory_group_members g WHERE g.user_id = u.id AND g.group_id = ANY($1))
		ORDER BY u.seq DESC
		LIMIT $2 OFFSET $3`, groupIDs, limit, offset)
}

func (d *Directory) ByRoles(ctx context.Context, tenantID uuid.UUID, roles []string, limit, offset int) ([]domain.Contact, error) {
	return d.query(ctx, "roles", `
		SELECT `+contactColumns+`
		FROM directory_users u
		WHERE u.tenant_id = $1 AND `+activeUser+` AND EXISTS (
			SELECT 1 FROM directory_user_roles r WHERE r.user_id = u.id AND r.tenant_id = $1 AND r.role = ANY($2))
		ORDER BY u.seq DESC
		LIMIT $3 OFFSET $4`, tenantID, roles, limit, offset)
}

func (d *Directory) All(ctx context.Context, limit, offset int) ([]domain.Contact, error) {
	return d.query(ctx, "all", `
		SELECT `+contactColumns+`
		FROM directory_users u
		WHERE `+activeUser+`
		ORDER BY u.seq DESC
		LIMIT $1 OFFSET $2`, limit, offset)
}
