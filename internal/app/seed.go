package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tenantrpc/internal/config"
	"github.com/roach88/tenantrpc/internal/session"
	"github.com/roach88/tenantrpc/internal/store"
)

// SeedStore is what ApplySeed writes to. *store.Store satisfies it.
type SeedStore interface {
	CreateTenant(ctx context.Context, t store.Tenant) (store.Tenant, error)
	CreateUser(ctx context.Context, u session.User) (session.User, error)
	LookupUser(ctx context.Context, email string) (session.User, error)
	AddMembership(ctx context.Context, userID, tenantID, role string) error
	CreateInvoice(ctx context.Context, tenantID string, inv store.Invoice) (store.Invoice, error)
}

// SeedReport counts rows ApplySeed created. Skipped counts tenants, users
// and invoices that already existed.
type SeedReport struct {
	Tenants     int `json:"tenants"`
	Users       int `json:"users"`
	Memberships int `json:"memberships"`
	Invoices    int `json:"invoices"`
	Skipped     int `json:"skipped"`
}

// ApplySeed writes seed to st. It is safe to re-run: existing tenants,
// users and invoice numbers are skipped and memberships are upserted.
func ApplySeed(ctx context.Context, st SeedStore, seed *config.Seed, bcryptCost int) (SeedReport, error) {
	var report SeedReport

	for _, t := range seed.Tenants {
		_, err := st.CreateTenant(ctx, store.Tenant{ID: t.ID, Name: t.Name})
		switch {
		case errors.Is(err, store.ErrConflict):
			report.Skipped++
		case err != nil:
			return report, fmt.Errorf("seed tenant %s: %w", t.ID, err)
		default:
			report.Tenants++
		}
	}

	for _, u := range seed.Users {
		user, err := seedUser(ctx, st, u, bcryptCost, &report)
		if err != nil {
			return report, err
		}
		for _, m := range u.Tenants {
			if err := st.AddMembership(ctx, user.ID, m.ID, m.Role); err != nil {
				return report, fmt.Errorf("seed membership %s in %s: %w", u.Email, m.ID, err)
			}
			report.Memberships++
		}
	}

	for _, inv := range seed.Invoices {
		currency := inv.Currency
		if currency == "" {
			currency = "USD"
		}
		_, err := st.CreateInvoice(ctx, inv.Tenant, store.Invoice{
			Number:      inv.Number,
			Customer:    inv.Customer,
			AmountCents: inv.AmountCents,
			Currency:    currency,
			Status:      inv.Status,
		})
		switch {
		case errors.Is(err, store.ErrConflict):
			report.Skipped++
		case err != nil:
			return report, fmt.Errorf("seed invoice %s: %w", inv.Number, err)
		default:
			report.Invoices++
		}
	}

	return report, nil
}

func seedUser(ctx context.Context, st SeedStore, u config.SeedUser, cost int, report *SeedReport) (session.User, error) {
	existing, err := st.LookupUser(ctx, u.Email)
	if err == nil {
		report.Skipped++
		return existing, nil
	}
	if !errors.Is(err, session.ErrUserNotFound) {
		return session.User{}, fmt.Errorf("seed user %s: %w", u.Email, err)
	}

	hash, err := session.HashPassword(u.Password, cost)
	if err != nil {
		return session.User{}, fmt.Errorf("seed user %s: %w", u.Email, err)
	}
	created, err := st.CreateUser(ctx, session.User{
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PasswordHash: hash,
	})
	if err != nil {
		return session.User{}, fmt.Errorf("seed user %s: %w", u.Email, err)
	}
	report.Users++
	return created, nil
}
