package registry

import (
	"context"
	"slices"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/session"
)

// Built-in error variant names. Every operation may fail with these, so
// none may be declared by an operation.
const (
	VariantNotFound        = "NotFound"
	VariantUnauthenticated = "Unauthenticated"
	VariantForbidden       = "Forbidden"
	VariantValidation      = "ValidationError"
	VariantUnavailable     = "Unavailable"
	VariantRateLimited     = "RateLimited"
	VariantInternal        = "Internal"
	VariantUnknown         = "Unknown"
)

var builtinVariants = []string{
	VariantNotFound,
	VariantUnauthenticated,
	VariantForbidden,
	VariantValidation,
	VariantUnavailable,
	VariantRateLimited,
	VariantInternal,
	VariantUnknown,
}

// BuiltinVariants returns the reserved variant names in wire order.
func BuiltinVariants() []string {
	return slices.Clone(builtinVariants)
}

// IsBuiltinVariant reports whether name is reserved.
func IsBuiltinVariant(name string) bool {
	return slices.Contains(builtinVariants, name)
}

// ErrorVariant is a declared, typed failure of one operation. A zero Data
// ref means the variant carries no data.
type ErrorVariant struct {
	Name string
	Data contract.ShapeRef
}

// Handler implements an operation. It receives input already validated
// against the operation's input shape. Declared failures are returned as
// errors built with rpc.Fail; any other error is an internal fault.
type Handler func(ctx context.Context, call *Call, in contract.Object) (contract.Value, error)

// Operation is one registered remote procedure. It is immutable once
// registered.
type Operation struct {
	Name    string
	Level   Level
	Input   contract.ShapeRef
	Output  contract.ShapeRef
	Errors  []ErrorVariant
	Doc     string
	Handler Handler
}

// Variant returns the declared variant called name.
func (op *Operation) Variant(name string) (ErrorVariant, bool) {
	for _, v := range op.Errors {
		if v.Name == name {
			return v, true
		}
	}
	return ErrorVariant{}, false
}

// ShapeRefs returns every shape the operation references, in declaration
// order: input, output, then variant data.
func (op *Operation) ShapeRefs() []contract.ShapeRef {
	refs := []contract.ShapeRef{op.Input, op.Output}
	for _, v := range op.Errors {
		if !v.Data.IsZero() {
			refs = append(refs, v.Data)
		}
	}
	return refs
}

// Call is the request-scoped context a handler sees. It is built fresh per
// call and never shared; its tenant cannot change after construction.
type Call struct {
	requestID string
	op        *Operation
	token     string
	sess      session.Context
	hasSess   bool
}

// NewCall builds the context for one invocation of op. sess is nil for
// public calls made without a session.
func NewCall(requestID string, op *Operation, token string, sess *session.Context) *Call {
	c := &Call{requestID: requestID, op: op, token: token}
	if sess != nil {
		c.sess = *sess
		c.hasSess = true
	}
	return c
}

// RequestID identifies the call in logs.
func (c *Call) RequestID() string { return c.requestID }

// Operation returns the invoked operation's name.
func (c *Call) Operation() string { return c.op.Name }

// Session returns the resolved session, if any.
func (c *Call) Session() (session.Context, bool) { return c.sess, c.hasSess }

// UserID returns the resolved user or "".
func (c *Call) UserID() string { return c.sess.UserID }

// Tenant returns the resolved tenant id for tenant-level operations and ""
// otherwise. It is the only tenant id a handler may pass to a store.
func (c *Call) Tenant() string {
	if c.op.Level != LevelTenant {
		return ""
	}
	return c.sess.TenantID
}

// Token returns the bearer token the call was made with. Only session
// management operations need it.
func (c *Call) Token() string { return c.token }
