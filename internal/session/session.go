// Package session maps opaque bearer tokens to validated (user, tenant,
// expiry) contexts.
//
// The Resolver is the only writer of session state. Stores persist a
// domain-separated digest of each token, never the token itself, so a leaked
// database cannot be replayed against the API.
//
// Sessions are tenant-scoped at creation. A user active in two tenants holds
// two sessions; switching tenant issues a new session and revokes the old one
// (see Resolver.Reissue). No code path rewrites a session's tenant.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials is returned by Authenticate for an unknown email,
	// a wrong password, or a tenant the user does not belong to. The cases
	// are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is returned by Resolve when the token is missing,
	// malformed, unknown, expired or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotMember is returned by Reissue when the caller asks for a tenant
	// they do not belong to.
	ErrNotMember = errors.New("user is not a member of tenant")

	// ErrSessionNotFound is returned by Store.GetSession for an unknown digest
	// and by Store.RotateSession when the old session is no longer live.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound is returned by Directory.LookupUser.
	ErrUserNotFound = errors.New("user not found")
)

// Credentials are what a caller presents to Authenticate. TenantID is
// optional; an empty value yields a user-level session.
type Credentials struct {
	Email    string
	Password string
	TenantID string
}

// Session is a freshly issued session. Token is the bearer credential and is
// only ever available here, at issue time.
type Session struct {
	Token     string
	ID        string
	UserID    string
	TenantID  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Context returns the resolved view of s.
func (s *Session) Context() Context {
	return Context{
		SessionID: s.ID,
		UserID:    s.UserID,
		TenantID:  s.TenantID,
		ExpiresAt: s.ExpiresAt,
	}
}

// Context is the validated identity attached to a call.
type Context struct {
	SessionID string
	UserID    string
	TenantID  string
	ExpiresAt time.Time
}

// HasTenant reports whether the session was issued for a tenant.
func (c Context) HasTenant() bool {
	return c.TenantID != ""
}

// Record is the persisted form of a session.
type Record struct {
	Digest    string
	UserID    string
	TenantID  string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt time.Time
}

// Revoked reports whether the session has been invalidated.
func (r Record) Revoked() bool {
	return !r.RevokedAt.IsZero()
}

// LiveAt reports whether the session is usable at now.
func (r Record) LiveAt(now time.Time) bool {
	return !r.Revoked() && now.Before(r.ExpiresAt)
}

// User is a directory entry. PasswordHash is a bcrypt hash.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
}

// Store persists session records keyed by token digest.
//
// Implementations must make each write atomic per digest.
type Store interface {
	// CreateSession inserts a new record. A digest collision is an error.
	CreateSession(ctx context.Context, rec Record) error

	// GetSession returns the record for digest or ErrSessionNotFound.
	GetSession(ctx context.Context, digest string) (Record, error)

	// RevokeSession marks the record revoked. Unknown or already revoked
	// digests are a no-op.
	RevokeSession(ctx context.Context, digest string, at time.Time) error

	// RotateSession revokes oldDigest and inserts next in one transaction.
	// It fails with ErrSessionNotFound if oldDigest is not live at at.
	RotateSession(ctx context.Context, oldDigest string, next Record, at time.Time) error

	// DeleteExpiredSessions removes records that are expired or revoked at
	// now and returns how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// Directory answers identity questions for Authenticate.
type Directory interface {
	// LookupUser finds a user by normalized email or returns ErrUserNotFound.
	LookupUser(ctx context.Context, email string) (User, error)

	// IsMember reports whether userID belongs to tenantID.
	IsMember(ctx context.Context, userID, tenantID string) (bool, error)
}
