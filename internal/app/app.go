// Package app is the invoicing demo served by tenantrpc: its contracts live
// in the embedded contracts.cue and its handlers are bound here.
//
// Handlers never read a tenant id from input. Tenant-scoped store calls take
// call.Tenant(), which the dispatcher derives from the resolved session.
package app

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
	"github.com/roach88/tenantrpc/internal/session"
	"github.com/roach88/tenantrpc/internal/store"
)

// ContractsFile is the name the embedded contracts compile under.
const ContractsFile = "contracts.cue"

// MaxInvoicePage caps list_invoices.
const MaxInvoicePage = 200

//go:embed contracts.cue
var contractsSource []byte

// Sessions is the session lifecycle the handlers drive. *session.Resolver
// satisfies it.
type Sessions interface {
	Authenticate(ctx context.Context, creds session.Credentials) (*session.Session, error)
	Invalidate(ctx context.Context, token string) error
	Reissue(ctx context.Context, token, tenantID string) (*session.Session, error)
}

// Store is the persistence the handlers use. *store.Store satisfies it.
type Store interface {
	GetUser(ctx context.Context, id string) (session.User, error)
	ListMemberships(ctx context.Context, userID string) ([]store.Membership, error)
	ListInvoices(ctx context.Context, tenantID string, limit int) ([]store.Invoice, error)
	CreateInvoice(ctx context.Context, tenantID string, inv store.Invoice) (store.Invoice, error)
}

// Deps are the collaborators handlers call at request time. Build accepts
// zero Deps for commands that only inspect the contract.
type Deps struct {
	Sessions Sessions
	Store    Store
	Logger   *slog.Logger
}

// Contracts compiles the embedded contract file.
func Contracts() (*contract.Declarations, error) {
	return contract.LoadCUE(ContractsFile, contractsSource)
}

// Source returns the embedded contract file.
func Source() []byte {
	return contractsSource
}

// Build compiles the contracts into a sealed model and binds every declared
// operation to its handler in a sealed registry.
func Build(deps Deps) (*contract.Model, *registry.Registry, error) {
	decls, err := Contracts()
	if err != nil {
		return nil, nil, fmt.Errorf("compile contracts: %w", err)
	}

	model := contract.NewModel()
	if err := decls.DefineShapes(model); err != nil {
		return nil, nil, err
	}
	if err := model.Seal(); err != nil {
		return nil, nil, err
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{Deps: deps}

	reg := registry.New(model)
	if err := reg.FromDeclarations(decls.Operations, h.table()); err != nil {
		return nil, nil, err
	}
	if err := reg.Check(); err != nil {
		return nil, nil, err
	}
	reg.Seal()
	return model, reg, nil
}

func formatTime(t time.Time) contract.String {
	return contract.String(t.UTC().Format(time.RFC3339))
}

// nullable maps "" to null.
func nullable(s string) contract.Value {
	if s == "" {
		return contract.Null{}
	}
	return contract.String(s)
}
