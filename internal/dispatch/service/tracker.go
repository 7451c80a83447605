package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

// DefaultClaimLease bounds how long a swept unit stays reserved for one sweeper.
const DefaultClaimLease = 5 * time.Minute

// Tracker persists unit state and runs retention cleanup.
type Tracker struct {
	repo  domain.MessageRepository
	now   func() time.Time
	lease time.Duration
}

func NewTracker(repo domain.MessageRepository) *Tracker {
	return &Tracker{repo: repo, now: time.Now, lease: DefaultClaimLease}
}

// Record inserts or updates the unit.
func (t *Tracker) Record(ctx context.Context, m *domain.Message) error {
	now := t.now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if err := t.repo.Save(ctx, m); err != nil {
		return fmt.Errorf("record %s message %s: %w", m.Channel, m.ID, err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, ch domain.ChannelType, id uuid.UUID) (*domain.Message, error) {
	return t.repo.GetByID(ctx, ch, id)
}

// Remove soft-deletes the tenant's units, or hard-deletes them when hard is set.
func (t *Tracker) Remove(ctx context.Context, ch domain.ChannelType, tenantID uuid.UUID, ids []uuid.UUID, hard bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return t.repo.Delete(ctx, ch, tenantID, ids, hard)
}

// PurgeBefore deletes every unit of the channel created more than days ago,
// whatever its status or tenant. Used by the retention job.
func (t *Tracker) PurgeBefore(ctx context.Context, ch domain.ChannelType, days int) (int64, error) {
	cutoff, err := t.cutoff(days)
	if err != nil {
		return 0, err
	}
	return t.repo.DeleteOlderThan(ctx, ch, nil, cutoff)
}

// PurgeTenantBefore is PurgeBefore restricted to one tenant's units.
func (t *Tracker) PurgeTenantBefore(ctx context.Context, ch domain.ChannelType, tenantID uuid.UUID, days int) (int64, error) {
	cutoff, err := t.cutoff(days)
	if err != nil {
		return 0, err
	}
	return t.repo.DeleteOlderThan(ctx, ch, &tenantID, cutoff)
}

func (t *Tracker) cutoff(days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, domain.Invalid("days", "must be positive")
	}
	return t.now().UTC().AddDate(0, 0, -days), nil
}

// Due claims PENDING units whose expected send date has passed. Claimed units
// are withheld from other callers for the lease duration.
func (t *Tracker) Due(ctx context.Context, ch domain.ChannelType, limit int) ([]*domain.Message, error) {
	now := t.now().UTC()
	return t.repo.ClaimDue(ctx, ch, now, now.Add(t.lease), limit)
}
