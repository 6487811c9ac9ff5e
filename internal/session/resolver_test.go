package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tenantrpc/internal/testutil"
)

type fixture struct {
	store    *MemoryStore
	clock    *testutil.FakeClock
	resolver *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)

	store := NewMemoryStore()
	store.AddUser(User{ID: "u1", Email: "Ada@Example.com", PasswordHash: hash})
	store.AddMembership("u1", "acme")
	store.AddMembership("u1", "globex")

	clock := testutil.NewFakeClock(time.Time{})
	resolver := NewResolver(store, store,
		WithTTL(time.Hour),
		WithClock(clock.Now),
		WithRandom(&testutil.SequenceReader{}),
		WithBcryptCost(bcrypt.MinCost),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &fixture{store: store, clock: clock, resolver: resolver}
}

func TestAuthenticate_IssuesOneSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.resolver.Authenticate(ctx, Credentials{Email: " ada@example.com", Password: "correct horse", TenantID: "acme"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sess.Token, "tr1."))
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "acme", sess.TenantID)
	assert.Equal(t, f.clock.Now().Add(time.Hour), sess.ExpiresAt)
	assert.Equal(t, 1, f.store.Len())

	rec, err := f.store.GetSession(ctx, Digest(sess.Token))
	require.NoError(t, err)
	assert.NotContains(t, rec.Digest, sess.Token)
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"wrong password", Credentials{Email: "ada@example.com", Password: "nope"}},
		{"unknown email", Credentials{Email: "bob@example.com", Password: "correct horse"}},
		{"non-member tenant", Credentials{Email: "ada@example.com", Password: "correct horse", TenantID: "initech"}},
		{"empty", Credentials{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.resolver.Authenticate(context.Background(), tt.creds)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, 0, f.store.Len(), "no session may be persisted")
		})
	}
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.resolver.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "correct horse", TenantID: "acme"})
	require.NoError(t, err)

	got, err := f.resolver.Resolve(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Context(), got)
	assert.True(t, got.HasTenant())
}

func TestResolve_UnauthenticatedCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.resolver.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	revoked, err := f.resolver.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NoError(t, f.resolver.Invalidate(ctx, revoked.Token))

	unknown, err := newToken(strings.NewReader(strings.Repeat("z", 32)))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing":   "",
		"malformed": "not-a-token",
		"truncated": sess.Token[:20],
		"unknown":   unknown,
		"revoked":   revoked.Token,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.resolver.Resolve(ctx, token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(time.Hour)
		_, err := f.resolver.Resolve(ctx, sess.Token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestInvalidate_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.resolver.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	require.NoError(t, f.resolver.Invalidate(ctx, sess.Token))
	_, err = f.resolver.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, f.resolver.Invalidate(ctx, sess.Token))
	_, err = f.resolver.Resolve(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.NoError(t, f.resolver.Invalidate(ctx, "garbage"))
}

func TestReissue_SwitchesTenantWithNewSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.resolver.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "correct horse", TenantID: "acme"})
	require.NoError(t, err)

	second, err := f.resolver.Reissue(ctx, first.Token, "globex")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, "globex", second.TenantID)

	_, err = f.resolver.Resolve(ctx, first.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "old session is revoked")

	got, err := f.resolver.Resolve(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, "globex", got.TenantID)

	rec, err := f.store.GetSession(ctx, Digest(first.Token))
	require.NoError(t, err)
	assert.Equal(t, "acme", rec.TenantID, "tenant of the old record is never rewritten")
}

func TestReissue_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.resolver.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "correct horse", TenantID: "acme"})
	require.NoError(t, err)

	_, err = f.resolver.Reissue(ctx, sess.Token, "initech")
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.resolver.Reissue(ctx, "bogus", "globex")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSweep_RemovesExpiredAndRevoked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := Credentials{Email: "ada@example.com", Password: "correct horse"}

	old, err := f.resolver.Authenticate(ctx, creds)
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	revoked, err := f.resolver.Authenticate(ctx, creds)
	require.NoError(t, err)
	require.NoError(t, f.resolver.Invalidate(ctx, revoked.Token))
	live, err := f.resolver.Authenticate(ctx, creds)
	require.NoError(t, err)

	f.clock.Advance(45 * time.Minute)
	n, err := f.resolver.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, f.store.Len())

	_, err = f.store.GetSession(ctx, Digest(old.Token))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.resolver.Resolve(ctx, live.Token)
	assert.NoError(t, err)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.resolver.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestWellFormed(t *testing.T) {
	token, err := newToken(&testutil.SequenceReader{})
	require.NoError(t, err)
	assert.True(t, wellFormed(token))
	assert.False(t, wellFormed(strings.TrimPrefix(token, "tr1.")))
	assert.False(t, wellFormed(token+"x"))
	assert.False(t, wellFormed("tr1."+strings.Repeat("!", tokenBodyLen)))
}
