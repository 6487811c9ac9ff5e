package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tenantrpc/internal/session"
)

var _ session.Directory = (*Store)(nil)

// Tenant is an isolated customer organization.
type Tenant struct {
	ID   string
	Name string
}

// Membership links a user to a tenant with a role.
type Membership struct {
	TenantID   string
	TenantName string
	Role       string
}

// CreateUser inserts u. An empty ID is assigned a UUIDv7; the email is
// normalized. Returns the stored user.
func (s *Store) CreateUser(ctx context.Context, u session.User) (session.User, error) {
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = session.NormalizeEmail(u.Email)
	if u.Email == "" || u.PasswordHash == "" {
		return session.User{}, fmt.Errorf("create user: email and password hash are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.DisplayName, u.PasswordHash, toUnix(s.now()))
	if isUniqueViolation(err) {
		return session.User{}, fmt.Errorf("create user %s: %w", u.Email, ErrConflict)
	}
	if err != nil {
		return session.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser returns the user with id or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (session.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash FROM users WHERE id = ?
	`, id))
}

// LookupUser implements session.Directory.
func (s *Store) LookupUser(ctx context.Context, email string) (session.User, error) {
	u, err := s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash FROM users WHERE email = ?
	`, session.NormalizeEmail(email)))
	if errors.Is(err, ErrNotFound) {
		return session.User{}, session.ErrUserNotFound
	}
	return u, err
}

func (s *Store) scanUser(row *sql.Row) (session.User, error) {
	var u session.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return session.User{}, ErrNotFound
	}
	if err != nil {
		return session.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// CreateTenant inserts t. An empty ID is assigned a UUIDv7.
func (s *Store) CreateTenant(ctx context.Context, t Tenant) (Tenant, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)
	`, t.ID, t.Name, toUnix(s.now()))
	if isUniqueViolation(err) {
		return Tenant{}, fmt.Errorf("create tenant %s: %w", t.ID, ErrConflict)
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

// AddMembership makes userID a member of tenantID. Re-adding updates the
// role.
func (s *Store) AddMembership(ctx context.Context, userID, tenantID, role string) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	if role == "" {
		role = "member"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (user_id, tenant_id, role) VALUES (?, ?, ?)
		ON CONFLICT(user_id, tenant_id) DO UPDATE SET role = excluded.role
	`, userID, tenantID, role)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

// IsMember implements session.Directory.
func (s *Store) IsMember(ctx context.Context, userID, tenantID string) (bool, error) {
	if tenantID == "" {
		return false, ErrMissingTenant
	}
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM memberships WHERE user_id = ? AND tenant_id = ?
	`, userID, tenantID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

// ListMemberships returns userID's tenants ordered by tenant id.
//
// Returns an empty slice (not nil) if the user has none.
func (s *Store) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.tenant_id, t.name, m.role
		FROM memberships m
		JOIN tenants t ON t.id = m.tenant_id
		WHERE m.user_id = ?
		ORDER BY m.tenant_id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	out := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.TenantID, &m.TenantName, &m.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return out, nil
}
