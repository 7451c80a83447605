package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository stores settings in app_settings. A NULL tenant_id marks a global value.
type PGRepository struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *PGRepository { return &PGRepository{pool: pool} }

func toPgUUIDPtr(u *uuid.UUID) pgtype.UUID {
	if u == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *u, Valid: true}
}

func (r *PGRepository) Get(ctx context.Context, key string, tenantID *uuid.UUID) (string, bool, error) {
	const query = `
		SELECT value
		FROM app_settings
		WHERE key = $1 AND (tenant_id = $2 OR tenant_id IS NULL)
		ORDER BY tenant_id NULLS LAST
		LIMIT 1`
	var v string
	err := r.pool.QueryRow(ctx, query, key, toPgUUIDPtr(tenantID)).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (r *PGRepository) Upsert(ctx context.Context, key string, tenantID *uuid.UUID, value string, secret bool) error {
	const query = `
		INSERT INTO app_settings (id, tenant_id, key, value, is_secret)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key, COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO UPDATE SET value = EXCLUDED.value, is_secret = EXCLUDED.is_secret, updated_at = now()`
	if _, err := r.pool.Exec(ctx, query, uuid.New(), toPgUUIDPtr(tenantID), key, value, secret); err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
