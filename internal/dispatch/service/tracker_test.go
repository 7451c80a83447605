package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

func TestTracker_RecordStampsTimes(t *testing.T) {
	repo := newMemMessages()
	tr := NewTracker(repo)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return created }

	m := &domain.Message{ID: uuid.New(), Channel: domain.ChannelEmail, Status: domain.StatusPending}
	require.NoError(t, tr.Record(context.Background(), m))
	assert.Equal(t, created, m.CreatedAt)

	later := created.Add(time.Hour)
	tr.now = func() time.Time { return later }
	m.Status = domain.StatusSuccess
	require.NoError(t, tr.Record(context.Background(), m))
	assert.Equal(t, created, m.CreatedAt)
	assert.Equal(t, later, m.UpdatedAt)
	assert.Equal(t, []domain.Status{domain.StatusPending, domain.StatusSuccess}, repo.saves)
	assert.Len(t, repo.all(), 1)
}

func TestTracker_PurgeBefore(t *testing.T) {
	repo := newMemMessages()
	tr := NewTracker(repo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, 2 * 24 * time.Hour} {
		at := now.Add(-age)
		tr.now = func() time.Time { return at }
		require.NoError(t, tr.Record(ctx, &domain.Message{ID: uuid.New(), Channel: domain.ChannelSMS, Status: domain.StatusFailure}))
	}
	tr.now = func() time.Time { return now }

	n, err := tr.PurgeBefore(ctx, domain.ChannelSMS, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Len(t, repo.all(), 1)

	_, err = tr.PurgeBefore(ctx, domain.ChannelSMS, 0)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestTracker_PurgeTenantBefore(t *testing.T) {
	repo := newMemMessages()
	tr := NewTracker(repo)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	mine, other := uuid.New(), uuid.New()

	old := now.Add(-40 * 24 * time.Hour)
	tr.now = func() time.Time { return old }
	for _, tenant := range []uuid.UUID{mine, other, mine} {
		require.NoError(t, tr.Record(ctx, &domain.Message{ID: uuid.New(), TenantID: tenant, Channel: domain.ChannelSMS, Status: domain.StatusSuccess}))
	}
	tr.now = func() time.Time { return now }

	n, err := tr.PurgeTenantBefore(ctx, domain.ChannelSMS, mine, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	left := repo.all()
	require.Len(t, left, 1)
	assert.Equal(t, other, left[0].TenantID)

	_, err = tr.PurgeTenantBefore(ctx, domain.ChannelSMS, mine, -1)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestTracker_Remove(t *testing.T) {
	repo := newMemMessages()
	tr := NewTracker(repo)
	ctx := context.Background()
	tenant := uuid.New()
	m := &domain.Message{ID: uuid.New(), TenantID: tenant, Channel: domain.ChannelEmail, Status: domain.StatusSuccess}
	require.NoError(t, tr.Record(ctx, m))

	n, err := tr.Remove(ctx, domain.ChannelEmail, tenant, nil, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = tr.Remove(ctx, domain.ChannelEmail, uuid.New(), []uuid.UUID{m.ID}, true)
	require.NoError(t, err)
	assert.Zero(t, n, "another tenant cannot delete the unit")
	got, err := tr.Get(ctx, domain.ChannelEmail, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)

	n, err = tr.Remove(ctx, domain.ChannelEmail, tenant, []uuid.UUID{m.ID, uuid.New()}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err = tr.Get(ctx, domain.ChannelEmail, m.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	_, err = tr.Remove(ctx, domain.ChannelEmail, tenant, []uuid.UUID{m.ID}, true)
	require.NoError(t, err)
	_, err = tr.Get(ctx, domain.ChannelEmail, m.ID)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestTracker_Due(t *testing.T) {
	repo := newMemMessages()
	tr := NewTracker(repo)
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := &domain.Message{ID: uuid.New(), Channel: domain.ChannelEmail, Status: domain.StatusPending, ExpectedSendDate: &past}
	notYet := &domain.Message{ID: uuid.New(), Channel: domain.ChannelEmail, Status: domain.StatusPending, ExpectedSendDate: &future}
	done := &domain.Message{ID: uuid.New(), Channel: domain.ChannelEmail, Status: domain.StatusSuccess, ExpectedSendDate: &past}
	for _, m := range []*domain.Message{due, notYet, done} {
		require.NoError(t, tr.Record(ctx, m))
	}

	got, err := tr.Due(ctx, domain.ChannelEmail, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestTracker_DueClaimsUnits(t *testing.T) {
	repo := newMemMessages()
	tr := NewTracker(repo)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	m := &domain.Message{ID: uuid.New(), Channel: domain.ChannelSMS, Status: domain.StatusPending}
	require.NoError(t, tr.Record(ctx, m))

	first, err := tr.Due(ctx, domain.ChannelSMS, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := tr.Due(ctx, domain.ChannelSMS, 10)
	require.NoError(t, err)
	assert.Empty(t, second, "a claimed unit is not handed out twice")

	tr.now = func() time.Time { return now.Add(DefaultClaimLease) }
	again, err := tr.Due(ctx, domain.ChannelSMS, 10)
	require.NoError(t, err)
	require.Len(t, again, 1, "the unit is due again once the lease lapses")
	assert.Equal(t, m.ID, again[0].ID)
}
