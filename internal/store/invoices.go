package store

import (
	"context"
	"fmt"
	"time"
)

// Invoice is a tenant-owned billing record.
type Invoice struct {
	ID          string
	TenantID    string
	Number      string
	Customer    string
	AmountCents int64
	Currency    string
	Status      string
	CreatedAt   time.Time
}

// ListInvoices returns up to limit invoices of tenantID, newest first.
// A non-positive limit means 50.
//
// Returns an empty slice (not nil) if the tenant has none.
func (s *Store) ListInvoices(ctx context.Context, tenantID string, limit int) ([]Invoice, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, number, customer, amount_cents, currency, status, created_at
		FROM invoices
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	defer rows.Close()

	out := []Invoice{}
	for rows.Next() {
		var (
			inv     Invoice
			created int64
		)
		if err := rows.Scan(&inv.ID, &inv.TenantID, &inv.Number, &inv.Customer,
			&inv.AmountCents, &inv.Currency, &inv.Status, &created); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.CreatedAt = fromUnix(created)
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

// CreateInvoice stores inv under tenantID. The tenant argument always wins
// over inv.TenantID. An empty ID is assigned a UUIDv7 and an empty status
// becomes "draft".
func (s *Store) CreateInvoice(ctx context.Context, tenantID string, inv Invoice) (Invoice, error) {
	if tenantID == "" {
		return Invoice{}, ErrMissingTenant
	}
	inv.TenantID = tenantID
	if inv.ID == "" {
		inv.ID = newID()
	}
	if inv.Status == "" {
		inv.Status = "draft"
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, tenant_id, number, customer, amount_cents, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.TenantID, inv.Number, inv.Customer, inv.AmountCents, inv.Currency, inv.Status, toUnix(inv.CreatedAt))
	if isUniqueViolation(err) {
		return Invoice{}, fmt.Errorf("create invoice %s: %w", inv.Number, ErrConflict)
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}
