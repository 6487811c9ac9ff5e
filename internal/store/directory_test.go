package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tenantrpc/internal/session"
)

func TestCreateUser_AssignsUUIDv7AndNormalizesEmail(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, session.User{Email: "  Ada@Example.COM ", DisplayName: "Ada", PasswordHash: "h"})
	require.NoError(t, err)

	parsed, err := uuid.Parse(u.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Equal(t, "ada@example.com", u.Email)

	_, err = s.CreateUser(ctx, session.User{Email: "ada@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.CreateUser(ctx, session.User{Email: "bob@example.com"})
	assert.Error(t, err)
}

func TestLookupUser(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "ada@example.com")

	u, err := s.LookupUser(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = s.LookupUser(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, session.ErrUserNotFound)

	_, err = s.GetUser(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemberships(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1", "ada@example.com")
	seedTenant(t, s, "globex", "Globex")
	seedTenant(t, s, "acme", "Acme")

	require.NoError(t, s.AddMembership(ctx, "u1", "globex", ""))
	require.NoError(t, s.AddMembership(ctx, "u1", "acme", "owner"))
	require.NoError(t, s.AddMembership(ctx, "u1", "globex", "admin"))

	ok, err := s.IsMember(ctx, "u1", "acme")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsMember(ctx, "u1", "initech")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.IsMember(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrMissingTenant)

	ms, err := s.ListMemberships(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []Membership{
		{TenantID: "acme", TenantName: "Acme", Role: "owner"},
		{TenantID: "globex", TenantName: "Globex", Role: "admin"},
	}, ms)

	ms, err = s.ListMemberships(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, ms)
	assert.Empty(t, ms)
}
