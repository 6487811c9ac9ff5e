package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store and Directory for tests and
// single-instance development servers.
//
// Thread-safety: all methods are safe for concurrent use. The mutex is never
// held across a call out of the store.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]Record
	users       map[string]User
	memberships map[string]map[string]bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]Record),
		users:       make(map[string]User),
		memberships: make(map[string]map[string]bool),
	}
}

// AddUser registers u, keyed by its normalized email.
func (m *MemoryStore) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[NormalizeEmail(u.Email)] = u
}

// AddMembership makes userID a member of tenantID.
func (m *MemoryStore) AddMembership(userID, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memberships[userID] == nil {
		m.memberships[userID] = make(map[string]bool)
	}
	m.memberships[userID][tenantID] = true
}

// LookupUser implements Directory.
func (m *MemoryStore) LookupUser(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[NormalizeEmail(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// IsMember implements Directory.
func (m *MemoryStore) IsMember(_ context.Context, userID, tenantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberships[userID][tenantID], nil
}

// CreateSession implements Store.
func (m *MemoryStore) CreateSession(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[rec.Digest]; exists {
		return fmt.Errorf("session %s already exists", sessionID(rec.Digest))
	}
	m.sessions[rec.Digest] = rec
	return nil
}

// GetSession implements Store.
func (m *MemoryStore) GetSession(_ context.Context, digest string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[digest]
	if !ok {
		return Record{}, ErrSessionNotFound
	}
	return rec, nil
}

// RevokeSession implements Store.
func (m *MemoryStore) RevokeSession(_ context.Context, digest string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[digest]
	if !ok || rec.Revoked() {
		return nil
	}
	rec.RevokedAt = at
	m.sessions[digest] = rec
	return nil
}

// RotateSession implements Store.
func (m *MemoryStore) RotateSession(_ context.Context, oldDigest string, next Record, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.sessions[oldDigest]
	if !ok || !old.LiveAt(at) {
		return ErrSessionNotFound
	}
	if _, exists := m.sessions[next.Digest]; exists {
		return fmt.Errorf("session %s already exists", sessionID(next.Digest))
	}
	old.RevokedAt = at
	m.sessions[oldDigest] = old
	m.sessions[next.Digest] = next
	return nil
}

// DeleteExpiredSessions implements Store.
func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for digest, rec := range m.sessions {
		if !rec.LiveAt(now) {
			delete(m.sessions, digest)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored session records, live or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
