package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
	"github.com/roach88/tenantrpc/internal/rpc"
	"github.com/roach88/tenantrpc/internal/session"
	"github.com/roach88/tenantrpc/internal/store"
)

type handlers struct {
	Deps
}

func (h *handlers) table() map[string]registry.Handler {
	return map[string]registry.Handler{
		"login":          h.login,
		"logout":         h.logout,
		"get_profile":    h.getProfile,
		"switch_tenant":  h.switchTenant,
		"list_invoices":  h.listInvoices,
		"create_invoice": h.createInvoice,
	}
}

func (h *handlers) login(ctx context.Context, _ *registry.Call, in contract.Object) (contract.Value, error) {
	sess, err := h.Sessions.Authenticate(ctx, session.Credentials{
		Email:    in.Str("email"),
		Password: in.Str("password"),
		TenantID: in.Str("tenant_id"),
	})
	if errors.Is(err, session.ErrInvalidCredentials) {
		return nil, rpc.Fail("InvalidCredentials", nil)
	}
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

func (h *handlers) logout(ctx context.Context, call *registry.Call, _ contract.Object) (contract.Value, error) {
	if err := h.Sessions.Invalidate(ctx, call.Token()); err != nil {
		return nil, err
	}
	return contract.Object{}, nil
}

func (h *handlers) getProfile(ctx context.Context, call *registry.Call, _ contract.Object) (contract.Value, error) {
	user, err := h.Store.GetUser(ctx, call.UserID())
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	memberships, err := h.Store.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	list := make(contract.List, len(memberships))
	for i, m := range memberships {
		list[i] = contract.Object{
			"tenant_id":   contract.String(m.TenantID),
			"tenant_name": contract.String(m.TenantName),
			"role":        contract.String(m.Role),
		}
	}

	sess, _ := call.Session()
	return contract.Object{
		"user_id":      contract.String(user.ID),
		"email":        contract.String(user.Email),
		"display_name": contract.String(user.DisplayName),
		"tenant_id":    nullable(sess.TenantID),
		"memberships":  list,
	}, nil
}

func (h *handlers) switchTenant(ctx context.Context, call *registry.Call, in contract.Object) (contract.Value, error) {
	sess, err := h.Sessions.Reissue(ctx, call.Token(), in.Str("tenant_id"))
	if errors.Is(err, session.ErrNotMember) {
		return nil, rpc.Fail("NotMember", nil)
	}
	if err != nil {
		return nil, err
	}
	h.Logger.Info("tenant switched",
		"request_id", call.RequestID(),
		"user_id", sess.UserID,
		"tenant_id", sess.TenantID)
	return sessionInfo(sess), nil
}

func (h *handlers) listInvoices(ctx context.Context, call *registry.Call, in contract.Object) (contract.Value, error) {
	limit := int(in.Int64("limit"))
	if limit > MaxInvoicePage {
		limit = MaxInvoicePage
	}

	invoices, err := h.Store.ListInvoices(ctx, call.Tenant(), limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	list := make(contract.List, len(invoices))
	for i, inv := range invoices {
		list[i] = invoiceValue(inv)
	}
	return contract.Object{
		"tenant_id": contract.String(call.Tenant()),
		"invoices":  list,
	}, nil
}

func (h *handlers) createInvoice(ctx context.Context, call *registry.Call, in contract.Object) (contract.Value, error) {
	inv, err := h.Store.CreateInvoice(ctx, call.Tenant(), store.Invoice{
		Number:      in.Str("number"),
		Customer:    in.Str("customer"),
		AmountCents: in.Int64("amount_cents"),
		Currency:    in.Str("currency"),
	})
	if errors.Is(err, store.ErrConflict) {
		return nil, rpc.Fail("DuplicateInvoice", contract.Object{
			"field":   contract.String("number"),
			"message": contract.String(fmt.Sprintf("invoice %s already exists", in.Str("number"))),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return invoiceValue(inv), nil
}

func sessionInfo(s *session.Session) contract.Object {
	return contract.Object{
		"token":      contract.String(s.Token),
		"session_id": contract.String(s.ID),
		"user_id":    contract.String(s.UserID),
		"tenant_id":  nullable(s.TenantID),
		"expires_at": formatTime(s.ExpiresAt),
	}
}

func invoiceValue(inv store.Invoice) contract.Object {
	return contract.Object{
		"id":           contract.String(inv.ID),
		"number":       contract.String(inv.Number),
		"customer":     contract.String(inv.Customer),
		"amount_cents": contract.Int(inv.AmountCents),
		"currency":     contract.String(inv.Currency),
		"status":       contract.String(inv.Status),
		"created_at":   formatTime(inv.CreatedAt),
	}
}
