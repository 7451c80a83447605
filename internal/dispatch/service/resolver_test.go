package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/courier/internal/dispatch/domain"
)

func emailOf(c domain.Contact) string { return c.Email }

type failingDirectory struct{ *memDirectory }

func (failingDirectory) All(context.Context, int, int) ([]domain.Contact, error) {
	return nil, errors.New("connection reset")
}

func TestResolver_Categories(t *testing.T) {
	tenant := uuid.New()
	ctx := context.Background()
	id := uuid.NewString()

	cases := []struct {
		name    string
		rc      *domain.Receive
		call    string
		wantNil bool
	}{
		{"user", &domain.Receive{ObjectType: domain.ObjectUser, ObjectIDs: []string{id}}, "user", false},
		{"user without ids", &domain.Receive{ObjectType: domain.ObjectUser}, "", true},
		{"dept", &domain.Receive{ObjectType: domain.ObjectDept, ObjectIDs: []string{id}}, "dept", false},
		{"dept without ids", &domain.Receive{ObjectType: domain.ObjectDept}, "", true},
		{"group", &domain.Receive{ObjectType: domain.ObjectGroup, ObjectIDs: []string{id}}, "group", false},
		{"tenant", &domain.Receive{ObjectType: domain.ObjectTenant}, "tenant", false},
		{"to policy", &domain.Receive{ObjectType: domain.ObjectToPolicy, PolicyCodes: []string{"admin"}}, "roles", false},
		{"to policy without codes", &domain.Receive{ObjectType: domain.ObjectToPolicy}, "", true},
		{"all", &domain.Receive{ObjectType: domain.ObjectAll}, "all", false},
		{"nil receive", nil, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := newMemDirectory(contacts(3))
			got, err := NewResolver(dir).Resolve(ctx, tenant, emailOf, tc.rc, 0, 500)
			require.NoError(t, err)
			if tc.wantNil {
				assert.Nil(t, got)
				assert.Zero(t, dir.total())
				return
			}
			assert.Len(t, got, 3)
			assert.Equal(t, 1, dir.calls[tc.call])
		})
	}
}

func TestResolver_TenantDefaultsToCaller(t *testing.T) {
	tenant := uuid.New()
	dir := newMemDirectory(contacts(1))
	_, err := NewResolver(dir).Resolve(context.Background(), tenant, emailOf, &domain.Receive{ObjectType: domain.ObjectTenant}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{tenant}, dir.lastIDs)
}

func TestResolver_Paging(t *testing.T) {
	dir := newMemDirectory(contacts(5))
	r := NewResolver(dir)
	rc := &domain.Receive{ObjectType: domain.ObjectAll}
	ctx := context.Background()

	p0, err := r.Resolve(ctx, uuid.Nil, emailOf, rc, 0, 2)
	require.NoError(t, err)
	p2, err := r.Resolve(ctx, uuid.Nil, emailOf, rc, 2, 2)
	require.NoError(t, err)
	p3, err := r.Resolve(ctx, uuid.Nil, emailOf, rc, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"u0@x.com", "u1@x.com"}, p0)
	assert.Equal(t, []string{"u4@x.com"}, p2)
	assert.Nil(t, p3)
}

func TestResolver_BlankAddressesDropped(t *testing.T) {
	dir := newMemDirectory([]domain.Contact{{Email: ""}, {Email: "  "}})
	got, err := NewResolver(dir).Resolve(context.Background(), uuid.Nil, emailOf, &domain.Receive{ObjectType: domain.ObjectAll}, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newMemDirectory(nil))

	_, err := r.Resolve(ctx, uuid.Nil, emailOf, &domain.Receive{ObjectType: domain.ObjectUser, ObjectIDs: []string{uuid.NewString()}}, 1, 10)
	assert.ErrorIs(t, err, domain.ErrUserPageOutOfRange)

	_, err = r.Resolve(ctx, uuid.Nil, emailOf, &domain.Receive{ObjectType: domain.ObjectPolicy}, 0, 10)
	assert.ErrorIs(t, err, domain.ErrResolutionGap)

	_, err = r.Resolve(ctx, uuid.Nil, emailOf, &domain.Receive{ObjectType: domain.ObjectDept, ObjectIDs: []string{"not-a-uuid"}}, 0, 10)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "object_ids", verr.Field)

	_, err = r.Resolve(ctx, uuid.Nil, emailOf, &domain.Receive{ObjectType: "ROLE"}, 0, 10)
	assert.ErrorAs(t, err, &verr)

	_, err = r.Resolve(ctx, uuid.Nil, emailOf, &domain.Receive{ObjectType: domain.ObjectAll}, -1, 10)
	assert.ErrorAs(t, err, &verr)

	_, err = NewResolver(failingDirectory{newMemDirectory(nil)}).Resolve(ctx, uuid.Nil, emailOf, &domain.Receive{ObjectType: domain.ObjectAll}, 0, 10)
	assert.ErrorContains(t, err, "resolve ALL recipients")
}
