package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tenantrpc/internal/session"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedUser creates a user with a placeholder hash. Tests here never verify
// passwords.
func seedUser(t *testing.T, s *Store, id, email string) session.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), session.User{ID: id, Email: email, PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return u
}

func seedTenant(t *testing.T, s *Store, id, name string) Tenant {
	t.Helper()
	tn, err := s.CreateTenant(context.Background(), Tenant{ID: id, Name: name})
	if err != nil {
		t.Fatalf("CreateTenant() failed: %v", err)
	}
	return tn
}
