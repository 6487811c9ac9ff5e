package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/tenantrpc/internal/app"
	"github.com/roach88/tenantrpc/internal/bindgen"
	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

// errUnbound is returned by operations loaded from a contract file for
// inspection only.
var errUnbound = errors.New("operation is not bound to a handler")

func unbound(context.Context, *registry.Call, contract.Object) (contract.Value, error) {
	return nil, errUnbound
}

// loadContract returns the sealed model and registry for path. An empty path
// selects the built-in application contracts. Operations from a file are
// registered with placeholder handlers: enough to generate bindings and
// list routes, never to serve.
func loadContract(path string) (*contract.Model, *registry.Registry, error) {
	if path == "" {
		return app.Build(app.Deps{})
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read contract file: %w", err)
	}
	decls, err := contract.LoadCUE(filepath.Base(path), src)
	if err != nil {
		return nil, nil, err
	}

	model := contract.NewModel()
	if err := decls.DefineShapes(model); err != nil {
		return nil, nil, err
	}

	handlers := make(map[string]registry.Handler, len(decls.Operations))
	for _, op := range decls.Operations {
		handlers[op.Name] = unbound
	}
	reg := registry.New(model)
	if err := reg.FromDeclarations(decls.Operations, handlers); err != nil {
		return nil, nil, err
	}

	// Check both halves before sealing so every missing reference is listed.
	if err := bindgen.Check(reg, model); err != nil {
		return nil, nil, err
	}
	if err := model.Seal(); err != nil {
		return nil, nil, err
	}
	reg.Seal()
	return model, reg, nil
}

// contractFailure maps a loadContract error to CLI output.
func contractFailure(f *OutputFormatter, err error) error {
	var ue *contract.UnresolvedError
	if errors.As(err, &ue) {
		return f.Fail(ExitCommandError, ErrCodeUnresolved, "unresolved shape references", ue.Refs)
	}
	var ce *bindgen.CollisionError
	if errors.As(err, &ce) {
		return f.Fail(ExitCommandError, ErrCodeCollision, "generated identifiers collide", ce.Collisions)
	}
	if errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeContract, err.Error(), nil)
}
