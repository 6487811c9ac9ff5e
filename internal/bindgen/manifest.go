package bindgen

import (
	"fmt"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

// Digest domains. The version suffix allows a future format change.
const (
	ManifestVersion = "tenantrpc/manifest/v1"
	DomainOperation = "tenantrpc/operation/v1"
)

// renderManifest builds the canonical JSON manifest. Each operation carries
// a sha256 over its own descriptor plus every shape it reaches, so any
// contract change that affects a caller changes that operation's digest.
func renderManifest(ops []*registry.Operation, names []string, descs map[string]contract.Description) ([]byte, error) {
	shapes := make(contract.Object, len(names))
	for _, name := range names {
		shapes[name] = descs[name].ToValue()
	}

	opList := make(contract.List, len(ops))
	for i, op := range ops {
		desc := describeOperation(op)
		digest, err := contract.Digest(DomainOperation, contract.Object{
			"operation": desc,
			"shapes":    reachableShapes(op, descs),
		})
		if err != nil {
			return nil, fmt.Errorf("digest %s: %w", op.Name, err)
		}
		desc["sha256"] = contract.String(digest)
		opList[i] = desc
	}

	builtins := registry.BuiltinVariants()
	builtinList := make(contract.List, len(builtins))
	for i, name := range builtins {
		builtinList[i] = contract.String(name)
	}

	manifest := contract.Object{
		"version":        contract.String(ManifestVersion),
		"shapes":         shapes,
		"operations":     opList,
		"builtin_errors": builtinList,
	}
	out, err := contract.MarshalCanonical(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(out, '\n'), nil
}

func describeOperation(op *registry.Operation) contract.Object {
	errs := make(contract.List, len(op.Errors))
	for i, v := range op.Errors {
		var data contract.Value = contract.Null{}
		if !v.Data.IsZero() {
			data = contract.String(v.Data.Name())
		}
		errs[i] = contract.Object{"name": contract.String(v.Name), "data": data}
	}
	return contract.Object{
		"name":   contract.String(op.Name),
		"level":  contract.String(op.Level.String()),
		"input":  contract.String(op.Input.Name()),
		"output": contract.String(op.Output.Name()),
		"errors": errs,
		"doc":    contract.String(op.Doc),
	}
}

// reachableShapes returns the descriptions of every shape op reaches,
// following nested and ref fields.
func reachableShapes(op *registry.Operation, descs map[string]contract.Description) contract.Object {
	out := contract.Object{}
	var queue []string
	for _, ref := range op.ShapeRefs() {
		queue = append(queue, ref.Name())
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, done := out[name]; done {
			continue
		}
		d := descs[name]
		out[name] = d.ToValue()
		queue = append(queue, d.References()...)
	}
	return out
}
