package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdomain "github.com/corvusHold/courier/internal/settings/domain"
)

func TestPGRepository_TenantOverride(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	defer pool.Close()

	r := New(pool)
	key := sdomain.KeySMSProvider + "." + uuid.NewString()
	tid := uuid.New()

	_, ok, err := r.Get(ctx, key, &tid)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Upsert(ctx, key, nil, "gateway", false))
	v, ok, err := r.Get(ctx, key, &tid)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gateway", v)

	require.NoError(t, r.Upsert(ctx, key, &tid, "twilio", false))
	require.NoError(t, r.Upsert(ctx, key, &tid, "twilio2", false))
	v, _, err = r.Get(ctx, key, &tid)
	require.NoError(t, err)
	assert.Equal(t, "twilio2", v)

	v, _, err = r.Get(ctx, key, nil)
	require.NoError(t, err)
	assert.Equal(t, "gateway", v)
}
