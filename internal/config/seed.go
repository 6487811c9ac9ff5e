package config

import (
	"errors"
	"fmt"
	"os"
)

// Seed is demo data: tenants, users with their memberships, and invoices.
//
//	tenants:
//	  - id: acme
//	    name: Acme Corp
//	users:
//	  - email: ada@example.com
//	    password: correct horse
//	    tenants: [{id: acme, role: owner}]
//	invoices:
//	  - tenant: acme
//	    number: INV-001
//	    customer: Globex
//	    amount_cents: 12500
type Seed struct {
	Tenants  []SeedTenant  `yaml:"tenants"`
	Users    []SeedUser    `yaml:"users"`
	Invoices []SeedInvoice `yaml:"invoices,omitempty"`
}

type SeedTenant struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedUser struct {
	Email       string           `yaml:"email"`
	DisplayName string           `yaml:"display_name,omitempty"`
	Password    string           `yaml:"password"`
	Tenants     []SeedMembership `yaml:"tenants,omitempty"`
}

type SeedMembership struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role,omitempty"`
}

type SeedInvoice struct {
	Tenant      string `yaml:"tenant"`
	Number      string `yaml:"number"`
	Customer    string `yaml:"customer"`
	AmountCents int64  `yaml:"amount_cents"`
	Currency    string `yaml:"currency,omitempty"`
	Status      string `yaml:"status,omitempty"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates seed YAML.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := decodeStrict(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return &seed, nil
}

// Validate checks required fields and that every tenant reference points at
// a declared tenant.
func (s *Seed) Validate() error {
	var errs []error
	tenants := make(map[string]bool, len(s.Tenants))
	for i, t := range s.Tenants {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("tenants[%d]: id is required", i))
			continue
		}
		if tenants[t.ID] {
			errs = append(errs, fmt.Errorf("tenants[%d]: duplicate id %q", i, t.ID))
		}
		tenants[t.ID] = true
	}
	for i, u := range s.Users {
		if u.Email == "" || u.Password == "" {
			errs = append(errs, fmt.Errorf("users[%d]: email and password are required", i))
		}
		for j, m := range u.Tenants {
			if !tenants[m.ID] {
				errs = append(errs, fmt.Errorf("users[%d].tenants[%d]: unknown tenant %q", i, j, m.ID))
			}
		}
	}
	for i, inv := range s.Invoices {
		if !tenants[inv.Tenant] {
			errs = append(errs, fmt.Errorf("invoices[%d]: unknown tenant %q", i, inv.Tenant))
		}
		if inv.Number == "" {
			errs = append(errs, fmt.Errorf("invoices[%d]: number is required", i))
		}
	}
	return errors.Join(errs...)
}
