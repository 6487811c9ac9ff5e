package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tenantrpc/internal/session"
)

var _ session.Store = (*Store)(nil)

// CreateSession implements session.Store.
func (s *Store) CreateSession(ctx context.Context, rec session.Record) error {
	if err := insertSession(ctx, s.db, rec); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession implements session.Store.
func (s *Store) GetSession(ctx context.Context, digest string) (session.Record, error) {
	var (
		rec              session.Record
		created, expires int64
		revoked          sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT digest, user_id, tenant_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE digest = ?
	`, digest).Scan(&rec.Digest, &rec.UserID, &rec.TenantID, &created, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("get session: %w", err)
	}

	rec.CreatedAt = fromUnix(created)
	rec.ExpiresAt = fromUnix(expires)
	if revoked.Valid {
		rec.RevokedAt = fromUnix(revoked.Int64)
	}
	return rec, nil
}

// RevokeSession implements session.Store. The revoked_at IS NULL guard keeps
// the first revocation time on repeated calls.
func (s *Store) RevokeSession(ctx context.Context, digest string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = ?
		WHERE digest = ? AND revoked_at IS NULL
	`, toUnix(at), digest)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RotateSession implements session.Store.
func (s *Store) RotateSession(ctx context.Context, oldDigest string, next session.Record, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rotate session: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = ?
		WHERE digest = ? AND revoked_at IS NULL AND expires_at > ?
	`, toUnix(at), oldDigest, toUnix(at))
	if err != nil {
		return fmt.Errorf("rotate session: revoke: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if n != 1 {
		return session.ErrSessionNotFound
	}

	if err := insertSession(ctx, tx, next); err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rotate session: commit: %w", err)
	}
	return nil
}

// DeleteExpiredSessions implements session.Store.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at <= ? OR revoked_at IS NOT NULL
	`, toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(n), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSession(ctx context.Context, db execer, rec session.Record) error {
	var revoked any
	if rec.Revoked() {
		revoked = toUnix(rec.RevokedAt)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (digest, user_id, tenant_id, created_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Digest, rec.UserID, rec.TenantID, toUnix(rec.CreatedAt), toUnix(rec.ExpiresAt), revoked)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}
