package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 12 * time.Hour

// Resolver owns the session lifecycle: issue on Authenticate, read on
// Resolve, revoke on Invalidate, and removal on Sweep.
//
// Thread-safety: Resolver holds no mutable state of its own beyond a lazily
// computed dummy hash; concurrent calls are serialized by the Store.
type Resolver struct {
	store  Store
	dir    Directory
	ttl    time.Duration
	now    func() time.Time
	rand   io.Reader
	logger *slog.Logger

	bcryptCost int
	dummyOnce  sync.Once
	dummyHash  []byte
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL sets the lifetime of newly issued sessions.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithRandom replaces crypto/rand as the token entropy source.
func WithRandom(rand io.Reader) Option {
	return func(r *Resolver) {
		r.rand = rand
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithBcryptCost sets the cost of the dummy hash compared against when the
// email is unknown. It should match the cost of stored hashes so both paths
// take similar time.
func WithBcryptCost(cost int) Option {
	return func(r *Resolver) {
		r.bcryptCost = cost
	}
}

// NewResolver creates a resolver over store and dir.
func NewResolver(store Store, dir Directory, opts ...Option) *Resolver {
	r := &Resolver{
		store:      store,
		dir:        dir,
		ttl:        DefaultTTL,
		now:        time.Now,
		rand:       rand.Reader,
		logger:     slog.Default(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the configured session lifetime.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

// Authenticate verifies creds and persists exactly one new session on
// success. Every credential failure is ErrInvalidCredentials; other errors
// are store or directory faults.
func (r *Resolver) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	email := NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		r.burnCompare(creds.Password)
		return nil, ErrInvalidCredentials
	}

	user, err := r.dir.LookupUser(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		r.burnCompare(creds.Password)
		r.logger.Debug("authenticate rejected", "reason", "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		r.logger.Debug("authenticate rejected", "reason", "password mismatch", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if creds.TenantID != "" {
		ok, err := r.dir.IsMember(ctx, user.ID, creds.TenantID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			r.logger.Debug("authenticate rejected", "reason", "not a member", "user_id", user.ID, "tenant_id", creds.TenantID)
			return nil, ErrInvalidCredentials
		}
	}

	sess, rec, err := r.newSession(user.ID, creds.TenantID)
	if err != nil {
		return nil, err
	}
	if err := r.store.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	r.logger.Info("session issued", "session_id", sess.ID, "user_id", sess.UserID, "tenant_id", sess.TenantID)
	return sess, nil
}

// Resolve maps token to its session context. Missing, malformed, unknown,
// expired and revoked tokens all yield ErrUnauthenticated. Any other error is
// a store fault.
func (r *Resolver) Resolve(ctx context.Context, token string) (Context, error) {
	if !wellFormed(token) {
		return Context{}, ErrUnauthenticated
	}

	digest := Digest(token)
	rec, err := r.store.GetSession(ctx, digest)
	if errors.Is(err, ErrSessionNotFound) {
		return Context{}, ErrUnauthenticated
	}
	if err != nil {
		return Context{}, fmt.Errorf("get session: %w", err)
	}
	if !rec.LiveAt(r.now()) {
		return Context{}, ErrUnauthenticated
	}

	return Context{
		SessionID: sessionID(digest),
		UserID:    rec.UserID,
		TenantID:  rec.TenantID,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Invalidate revokes the session for token. It is idempotent; malformed or
// unknown tokens are a no-op.
func (r *Resolver) Invalidate(ctx context.Context, token string) error {
	if !wellFormed(token) {
		return nil
	}
	digest := Digest(token)
	if err := r.store.RevokeSession(ctx, digest, r.now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	r.logger.Info("session revoked", "session_id", sessionID(digest))
	return nil
}

// Reissue switches tenant context: it issues a new session for tenantID and
// revokes the session behind token in the same store transaction. An empty
// tenantID yields a user-level session.
func (r *Resolver) Reissue(ctx context.Context, token, tenantID string) (*Session, error) {
	current, err := r.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	if tenantID != "" {
		ok, err := r.dir.IsMember(ctx, current.UserID, tenantID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return nil, ErrNotMember
		}
	}

	sess, rec, err := r.newSession(current.UserID, tenantID)
	if err != nil {
		return nil, err
	}
	err = r.store.RotateSession(ctx, Digest(token), rec, r.now())
	if errors.Is(err, ErrSessionNotFound) {
		// Revoked or expired between Resolve and the rotation.
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	r.logger.Info("session reissued",
		"old_session_id", current.SessionID,
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"tenant_id", sess.TenantID)
	return sess, nil
}

// Sweep deletes expired and revoked sessions.
func (r *Resolver) Sweep(ctx context.Context) (int, error) {
	n, err := r.store.DeleteExpiredSessions(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		r.logger.Info("sessions swept", "count", n)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Resolver) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}

func (r *Resolver) newSession(userID, tenantID string) (*Session, Record, error) {
	token, err := newToken(r.rand)
	if err != nil {
		return nil, Record{}, err
	}
	now := r.now().UTC()
	digest := Digest(token)

	rec := Record{
		Digest:    digest,
		UserID:    userID,
		TenantID:  tenantID,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	sess := &Session{
		Token:     token,
		ID:        sessionID(digest),
		UserID:    userID,
		TenantID:  tenantID,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	return sess, rec, nil
}

// burnCompare spends one bcrypt comparison so unknown emails cost about as
// much as wrong passwords.
func (r *Resolver) burnCompare(password string) {
	r.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("tenantrpc-dummy-password"), r.bcryptCost)
		if err != nil {
			r.logger.Warn("dummy hash generation failed", "error", err)
			return
		}
		r.dummyHash = h
	})
	if r.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(r.dummyHash, []byte(password))
	}
}
