// Package registry is the catalog of operations.
//
// Operations are registered once at process start in a deterministic order,
// then the registry is sealed. A sealed registry is read-only and serves
// concurrent lookups without locking.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/tenantrpc/internal/contract"
)

var (
	// ErrDuplicateOperation is returned by Register for a name already taken.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrNotFound is returned by Lookup for an unknown name.
	ErrNotFound = errors.New("operation not found")

	// ErrSealed is returned by Register after Seal.
	ErrSealed = errors.New("registry is sealed")
)

var (
	operationNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	variantNamePattern   = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
)

// RegistrationError describes an operation rejected by Register.
type RegistrationError struct {
	Operation string
	Message   string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %s", e.Operation, e.Message)
}

// Registry holds operations in registration order.
type Registry struct {
	model *contract.Model

	mu     sync.Mutex
	ops    map[string]*Operation
	order  []*Operation
	sealed atomic.Bool
}

// New creates an empty registry whose operations reference shapes in model.
func New(model *contract.Model) *Registry {
	return &Registry{
		model: model,
		ops:   make(map[string]*Operation),
	}
}

// Model returns the contract model operations reference.
func (r *Registry) Model() *contract.Model {
	return r.model
}

// Register adds op. Shape references are not resolved here; the binding
// generator and Check report dangling ones.
func (r *Registry) Register(op Operation) error {
	if err := validateOperation(&op); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return ErrSealed
	}
	if _, exists := r.ops[op.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, op.Name)
	}

	stored := op
	stored.Errors = append([]ErrorVariant(nil), op.Errors...)
	r.ops[op.Name] = &stored
	r.order = append(r.order, &stored)
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(op Operation) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Lookup returns the operation called name or ErrNotFound.
func (r *Registry) Lookup(name string) (*Operation, error) {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return op, nil
}

// Operations returns all operations in registration order.
func (r *Registry) Operations() []*Operation {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	out := make([]*Operation, len(r.order))
	copy(out, r.order)
	return out
}

// Seal freezes the registry. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Check reports every operation shape reference missing from the model.
func (r *Registry) Check() error {
	var missing []string
	for _, op := range r.Operations() {
		for _, ref := range op.ShapeRefs() {
			if _, ok := r.model.Lookup(ref.Name()); !ok {
				missing = append(missing, op.Name+" -> "+ref.Name())
			}
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return &contract.UnresolvedError{Refs: slices.Compact(missing)}
	}
	return nil
}

func validateOperation(op *Operation) error {
	fail := func(format string, args ...any) error {
		return &RegistrationError{Operation: op.Name, Message: fmt.Sprintf(format, args...)}
	}

	if !operationNamePattern.MatchString(op.Name) {
		return fail("operation name must be snake_case")
	}
	if !op.Level.Valid() {
		return fail("invalid level %s", op.Level)
	}
	if op.Input.IsZero() {
		return fail("input shape is required")
	}
	if op.Output.IsZero() {
		return fail("output shape is required")
	}
	if op.Handler == nil {
		return fail("handler is required")
	}

	seen := make(map[string]bool, len(op.Errors))
	for _, v := range op.Errors {
		switch {
		case !variantNamePattern.MatchString(v.Name):
			return fail("error variant %q must be PascalCase", v.Name)
		case IsBuiltinVariant(v.Name):
			return fail("error variant %q is reserved", v.Name)
		case seen[v.Name]:
			return fail("error variant %q declared twice", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}
