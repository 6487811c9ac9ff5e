// Package bindgen derives typed client artifacts from the registry and
// contract model.
//
// Generate is a pure function: identical registry and model state yields
// byte-identical artifacts. Shapes are emitted sorted by name, operations in
// registration order, and the manifest is canonical JSON, so the output can
// be committed and diffed in CI.
package bindgen

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
)

// Artifact file names.
const (
	ClientFile   = "client.ts"
	ManifestFile = "manifest.json"
)

// File is one generated artifact.
type File struct {
	Path    string
	Content []byte
}

// Artifacts is the generated file set, in a fixed order.
type Artifacts struct {
	Files []File
}

// File returns the content of the artifact at path.
func (a *Artifacts) File(path string) ([]byte, bool) {
	for _, f := range a.Files {
		if f.Path == path {
			return f.Content, true
		}
	}
	return nil, false
}

// WriteDir writes every artifact under dir, creating it if needed.
func (a *Artifacts) WriteDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, f := range a.Files {
		path := filepath.Join(dir, f.Path)
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// Diff compares the artifacts with the files under dir and returns the
// paths that are missing or differ. An empty result means dir is current.
func (a *Artifacts) Diff(dir string) ([]string, error) {
	var stale []string
	for _, f := range a.Files {
		existing, err := os.ReadFile(filepath.Join(dir, f.Path))
		if errors.Is(err, os.ErrNotExist) {
			stale = append(stale, f.Path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Path, err)
		}
		if !bytes.Equal(existing, f.Content) {
			stale = append(stale, f.Path)
		}
	}
	return stale, nil
}

// Generate renders the client and manifest for every registered operation.
//
// It fails with *contract.UnresolvedError listing every shape reference,
// from operations or from shape fields, that the model cannot resolve, and
// with *CollisionError when two declarations would share a TypeScript name.
func Generate(reg *registry.Registry, model *contract.Model) (*Artifacts, error) {
	if err := Check(reg, model); err != nil {
		return nil, err
	}

	names := model.Names()
	descs := make(map[string]contract.Description, len(names))
	for _, name := range names {
		d, err := model.Describe(contract.Ref(name))
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", name, err)
		}
		descs[name] = d
	}

	ops := reg.Operations()

	manifest, err := renderManifest(ops, names, descs)
	if err != nil {
		return nil, err
	}
	client := renderClient(ops, names, descs)

	return &Artifacts{Files: []File{
		{Path: ClientFile, Content: client},
		{Path: ManifestFile, Content: manifest},
	}}, nil
}

// Check runs the same integrity checks as Generate without rendering.
func Check(reg *registry.Registry, model *contract.Model) error {
	if err := checkReferences(reg, model); err != nil {
		return err
	}
	return checkIdentifiers(reg.Operations(), model.Names())
}

func checkReferences(reg *registry.Registry, model *contract.Model) error {
	var missing []string
	for _, check := range []func() error{model.Check, reg.Check} {
		err := check()
		var ue *contract.UnresolvedError
		switch {
		case errors.As(err, &ue):
			missing = append(missing, ue.Refs...)
		case err != nil:
			return err
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &contract.UnresolvedError{Refs: slices.Compact(missing)}
}
