package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

var _ domain.MessageRepository = (*Messages)(nil)

// Messages stores outbound units, one table per channel.
type Messages struct{ pool *pgxpool.Pool }

func NewMessages(pool *pgxpool.Pool) *Messages { return &Messages{pool: pool} }

func table(ch domain.ChannelType) (string, error) {
	switch ch {
	case domain.ChannelEmail:
		return "email_messages", nil
	case domain.ChannelSMS:
		return "sms_messages", nil
	}
	return "", domain.Invalid("channel", fmt.Sprintf("unsupported channel %q", ch))
}

func toPgUUIDPtr(u *uuid.UUID) pgtype.UUID {
	if u == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *u, Valid: true}
}

const messageColumns = `id, tenant_id, created_by, channel_config_id, template_code, sender, subject, body,
	destinations, params, param_sets, send_now, batch, test, verification_code, biz_key,
	status, failure_reason, expected_send_date, actual_send_date, retry_count,
	created_at, updated_at, deleted_at`

func (r *Messages) Save(ctx context.Context, m *domain.Message) error {
	tbl, err := table(m.Channel)
	if err != nil {
		return err
	}
	params := m.Params
	if params == nil {
		params = map[string]string{}
	}
	sets := m.ParamSets
	if sets == nil {
		sets = []map[string]string{}
	}
	dests := m.Destinations
	if dests == nil {
		dests = []string{}
	}
	query := `
		INSERT INTO ` + tbl + ` (id, tenant_id, created_by, channel_config_id, template_code, sender, subject, body,
			destinations, params, param_sets, send_now, batch, test, verification_code, biz_key,
			status, failure_reason, expected_send_date, actual_send_date, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE SET
			destinations = EXCLUDED.destinations,
			params = EXCLUDED.params,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			actual_send_date = EXCLUDED.actual_send_date,
			retry_count = EXCLUDED.retry_count,
			updated_at = EXCLUDED.updated_at`
	_, err = r.pool.Exec(ctx, query,
		m.ID, m.TenantID, m.CreatedBy, toPgUUIDPtr(m.ChannelConfigID), m.TemplateCode, m.From, m.Subject, m.Body,
		dests, params, sets, m.SendNow, m.Batch, m.Test, m.VerificationCode, m.BizKey,
		string(m.Status), domain.Truncate(m.FailureReason, domain.MaxFailureReason), m.ExpectedSendDate, m.ActualSendDate, m.RetryCount,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", tbl, err)
	}
	return nil
}

func scanMessage(row pgx.Row, ch domain.ChannelType) (*domain.Message, error) {
	var (
		m      domain.Message
		cfgID  pgtype.UUID
		status string
	)
	err := row.Scan(
		&m.ID, &m.TenantID, &m.CreatedBy, &cfgID, &m.TemplateCode, &m.From, &m.Subject, &m.Body,
		&m.Destinations, &m.Params, &m.ParamSets, &m.SendNow, &m.Batch, &m.Test, &m.VerificationCode, &m.BizKey,
		&status, &m.FailureReason, &m.ExpectedSendDate, &m.ActualSendDate, &m.RetryCount,
		&m.CreatedAt, &m.UpdatedAt, &m.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if cfgID.Valid {
		id := uuid.UUID(cfgID.Bytes)
		m.ChannelConfigID = &id
	}
	if len(m.ParamSets) == 0 {
		m.ParamSets = nil
	}
	m.Channel = ch
	m.Status = domain.Status(status)
	return &m, nil
}

func (r *Messages) GetByID(ctx context.Context, ch domain.ChannelType, id uuid.UUID) (*domain.Message, error) {
	tbl, err := table(ch)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + messageColumns + ` FROM ` + tbl + ` WHERE id = $1 AND deleted_at IS NULL`
	m, err := scanMessage(r.pool.QueryRow(ctx, query, id), ch)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", tbl, id, err)
	}
	return m, nil
}

// Delete soft-deletes (or, when hard, removes) the tenant's units among ids.
// Ids owned by another tenant are left untouched.
func (r *Messages) Delete(ctx context.Context, ch domain.ChannelType, tenantID uuid.UUID, ids []uuid.UUID, hard bool) (int64, error) {
	tbl, err := table(ch)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	query := `UPDATE ` + tbl + ` SET deleted_at = now(), updated_at = now()
		WHERE id = ANY($1) AND tenant_id = $2 AND deleted_at IS NULL`
	if hard {
		query = `DELETE FROM ` + tbl + ` WHERE id = ANY($1) AND tenant_id = $2`
	}
	tag, err := r.pool.Exec(ctx, query, ids, tenantID)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", tbl, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOlderThan removes units created before cutoff. A nil tenantID purges
// every tenant.
func (r *Messages) DeleteOlderThan(ctx context.Context, ch domain.ChannelType, tenantID *uuid.UUID, cutoff time.Time) (int64, error) {
	tbl, err := table(ch)
	if err != nil {
		return 0, err
	}
	query := `DELETE FROM ` + tbl + ` WHERE created_at < $1`
	args := []any{cutoff}
	if tenantID != nil {
		query += ` AND tenant_id = $2`
		args = append(args, *tenantID)
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", tbl, err)
	}
	return tag.RowsAffected(), nil
}

// ClaimDue leases up to limit due PENDING units until leaseUntil and returns
// them. Rows locked or leased by another sweeper are skipped, so concurrent
// callers never receive the same unit while its lease holds.
func (r *Messages) ClaimDue(ctx context.Context, ch domain.ChannelType, now, leaseUntil time.Time, limit int) ([]*domain.Message, error) {
	tbl, err := table(ch)
	if err != nil {
		return nil, err
	}
	query := `
		WITH due AS (
			SELECT id FROM ` + tbl + `
			WHERE status = 'PENDING' AND deleted_at IS NULL
				AND (expected_send_date IS NULL OR expected_send_date <= $1)
				AND (claimed_until IS NULL OR claimed_until <= $1)
			ORDER BY expected_send_date NULLS FIRST, created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE ` + tbl + ` SET claimed_until = $3
		WHERE id IN (SELECT id FROM due)
		RETURNING ` + messageColumns
	rows, err := r.pool.Query(ctx, query, now, limit, leaseUntil)
	if err != nil {
		return nil, fmt.Errorf("claim due %s: %w", tbl, err)
	}
	defer rows.Close()
	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows, ch)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", tbl, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
