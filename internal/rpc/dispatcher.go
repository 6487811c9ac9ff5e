// Package rpc executes calls against the operation registry.
//
// Every call runs the same pipeline and stops at the first failure:
//
//	Lookup -> Authenticate -> Authorize -> Validate -> Invoke -> Encode
//
// Authorization completes before validation and validation before
// invocation, so an unauthenticated caller never triggers payload work or
// handler side effects. Only declared variants and the opaque Internal
// variant can come out of the Invoke step.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
	"github.com/roach88/tenantrpc/internal/session"
)

// Resolver resolves bearer tokens. *session.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, token string) (session.Context, error)
}

// Dispatcher runs calls. It is safe for concurrent use; all per-call state
// lives on the stack of Dispatch.
type Dispatcher struct {
	reg      *registry.Registry
	model    *contract.Model
	resolver Resolver
	logger   *slog.Logger
	metrics  *Metrics
	newID    func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics records call counts and latency.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithIDGenerator replaces UUIDv7 request ids, for deterministic tests.
func WithIDGenerator(gen func() string) Option {
	return func(d *Dispatcher) {
		d.newID = gen
	}
}

// NewDispatcher creates a dispatcher over reg. The registry should be sealed
// before the first call.
func NewDispatcher(reg *registry.Registry, resolver Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:      reg,
		model:    reg.Model(),
		resolver: resolver,
		logger:   slog.Default(),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs req through the pipeline. It always returns a response;
// faults are logged with the request id and surface as Internal.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) *Response {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = d.newID()
	}

	if d.metrics != nil {
		d.metrics.InFlight.Inc()
		defer d.metrics.InFlight.Dec()
	}

	label := req.Operation
	resp := d.dispatch(ctx, req, &label)

	d.metrics.observe(label, resp.Outcome(), time.Since(start).Seconds())
	d.logger.Debug("call completed",
		"request_id", req.RequestID,
		"operation", req.Operation,
		"outcome", resp.Outcome(),
		"duration", time.Since(start))
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, label *string) *Response {
	id := req.RequestID

	// 1. Lookup
	op, err := d.reg.Lookup(req.Operation)
	if err != nil {
		*label = unknownOperationLabel
		return failure(id, registry.VariantNotFound, nil)
	}

	// 2. Authenticate
	var sess *session.Context
	if op.Level.RequiresSession() {
		if req.Token == "" {
			return failure(id, registry.VariantUnauthenticated, nil)
		}
		resolved, err := d.resolver.Resolve(ctx, req.Token)
		switch {
		case errors.Is(err, session.ErrUnauthenticated):
			return failure(id, registry.VariantUnauthenticated, nil)
		case err != nil && ctx.Err() != nil:
			return failure(id, registry.VariantUnavailable, nil)
		case err != nil:
			d.logger.Error("session resolve failed", "request_id", id, "operation", op.Name, "error", err)
			return internal(id)
		}
		sess = &resolved

		// 3. Authorize
		if !op.Level.Allows(registry.LevelOf(resolved)) {
			return failure(id, registry.VariantForbidden, nil)
		}
	}

	// 4. Validate
	in, err := d.model.ValidateJSON(op.Input, req.Payload)
	if err != nil {
		var ve *contract.ValidationError
		if errors.As(err, &ve) {
			return failure(id, registry.VariantValidation, ve.ToValue())
		}
		d.logger.Error("input validation fault", "request_id", id, "operation", op.Name, "error", err)
		return internal(id)
	}

	if ctx.Err() != nil {
		return failure(id, registry.VariantUnavailable, nil)
	}

	// 5. Invoke
	call := registry.NewCall(id, op, req.Token, sess)
	out, err := d.invoke(ctx, op, call, in)

	// 6. Encode
	if err != nil {
		return d.encodeFailure(ctx, op, id, err)
	}
	validated, err := d.model.Validate(op.Output, out)
	if err != nil {
		d.logger.Error("handler output does not match contract",
			"request_id", id, "operation", op.Name, "shape", op.Output.Name(), "error", err)
		return internal(id)
	}
	return success(id, validated)
}

// invoke runs the handler, converting a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, op *registry.Operation, call *registry.Call, in contract.Object) (out contract.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked",
				"request_id", call.RequestID(), "operation", op.Name,
				"panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			out, err = nil, errHandlerPanic
		}
	}()
	return op.Handler(ctx, call, in)
}

var errHandlerPanic = errors.New("handler panicked")

func (d *Dispatcher) encodeFailure(ctx context.Context, op *registry.Operation, id string, err error) *Response {
	var ve *VariantError
	if !errors.As(err, &ve) {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return failure(id, registry.VariantUnavailable, nil)
		}
		if !errors.Is(err, errHandlerPanic) {
			d.logger.Error("handler failed", "request_id", id, "operation", op.Name, "error", err)
		}
		return internal(id)
	}

	variant, ok := op.Variant(ve.Name)
	if !ok {
		d.logger.Error("handler returned undeclared variant",
			"request_id", id, "operation", op.Name, "variant", ve.Name)
		return internal(id)
	}

	if variant.Data.IsZero() {
		return failure(id, variant.Name, nil)
	}
	data, err := d.model.Validate(variant.Data, ve.Data)
	if err != nil {
		d.logger.Error("variant data does not match contract",
			"request_id", id, "operation", op.Name, "variant", ve.Name, "error", err)
		return internal(id)
	}
	return failure(id, variant.Name, data)
}
