package contract

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

var (
	// ErrSealed is returned by Define after Seal.
	ErrSealed = errors.New("contract model is sealed")

	// ErrUnknownShape is returned when a ShapeRef names no defined shape.
	ErrUnknownShape = errors.New("unknown shape")
)

// DefinitionError reports why a shape could not be defined.
type DefinitionError struct {
	Shape   string
	Field   string
	Message string
}

func (e *DefinitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("shape %s: field %s: %s", e.Shape, e.Field, e.Message)
	}
	return fmt.Sprintf("shape %s: %s", e.Shape, e.Message)
}

// UnresolvedError lists every ref target that names no defined shape.
type UnresolvedError struct {
	Refs []string // "Shape.field -> Target", sorted
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved shape references: %s", strings.Join(e.Refs, ", "))
}

// Model owns every shape definition.
//
// Definition happens once during process initialisation from a single
// goroutine. After Seal the model is read-only and safe for unsynchronised
// concurrent use by validators and generators.
type Model struct {
	shapes map[string]*Shape
	order  []string // definition order
	sealed atomic.Bool
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{shapes: make(map[string]*Shape)}
}

// Define adds a shape and returns a handle to it.
//
// Fields of KindShape must name shapes defined earlier; use KindRef for
// self-references and forward references.
func (m *Model) Define(name string, fields []Field, opts ...ShapeOption) (ShapeRef, error) {
	if m.sealed.Load() {
		return ShapeRef{}, ErrSealed
	}
	if !shapeNamePattern.MatchString(name) {
		return ShapeRef{}, &DefinitionError{Shape: name, Message: "shape names must be PascalCase identifiers"}
	}
	if _, exists := m.shapes[name]; exists {
		return ShapeRef{}, &DefinitionError{Shape: name, Message: "already defined"}
	}

	shape := &Shape{Name: name, Fields: slices.Clone(fields)}
	for _, opt := range opts {
		opt(shape)
	}

	seen := make(map[string]bool, len(fields))
	for i := range shape.Fields {
		f := &shape.Fields[i]
		if !fieldNamePattern.MatchString(f.Name) {
			return ShapeRef{}, &DefinitionError{Shape: name, Field: f.Name, Message: "field names must be snake_case identifiers"}
		}
		if seen[f.Name] {
			return ShapeRef{}, &DefinitionError{Shape: name, Field: f.Name, Message: "duplicate field"}
		}
		seen[f.Name] = true

		if err := m.checkType(name, f.Name, f.Type); err != nil {
			return ShapeRef{}, err
		}
		if f.Coerce && !isNumeric(f.Type) {
			return ShapeRef{}, &DefinitionError{Shape: name, Field: f.Name, Message: "coercion is only defined for int and float fields"}
		}
		if f.Default != nil {
			if err := checkDefault(f); err != nil {
				return ShapeRef{}, &DefinitionError{Shape: name, Field: f.Name, Message: err.Error()}
			}
			f.Optional = true
		}
	}

	m.shapes[name] = shape
	m.order = append(m.order, name)
	return ShapeRef{name: name}, nil
}

// MustDefine is like Define but panics on error.
// Use only in tests or for statically known shapes.
func (m *Model) MustDefine(name string, fields []Field, opts ...ShapeOption) ShapeRef {
	ref, err := m.Define(name, fields, opts...)
	if err != nil {
		panic(err)
	}
	return ref
}

func (m *Model) checkType(shape, field string, t Type) error {
	switch t.Kind {
	case KindString, KindInt, KindFloat, KindBool:
		return nil
	case KindList:
		if t.Elem == nil {
			return &DefinitionError{Shape: shape, Field: field, Message: "list without element type"}
		}
		return m.checkType(shape, field, *t.Elem)
	case KindShape:
		if _, ok := m.shapes[t.Shape]; !ok {
			return &DefinitionError{Shape: shape, Field: field,
				Message: fmt.Sprintf("nested shape %q is not defined yet (use ref<%s> for recursive or forward references)", t.Shape, t.Shape)}
		}
		return nil
	case KindRef:
		if !shapeNamePattern.MatchString(t.Shape) {
			return &DefinitionError{Shape: shape, Field: field, Message: fmt.Sprintf("invalid ref target %q", t.Shape)}
		}
		return nil
	default:
		return &DefinitionError{Shape: shape, Field: field, Message: fmt.Sprintf("unsupported kind %q", t.Kind)}
	}
}

func isNumeric(t Type) bool {
	return t.Kind == KindInt || t.Kind == KindFloat
}

// checkDefault requires defaults to be primitives matching the field type.
func checkDefault(f *Field) error {
	switch f.Type.Kind {
	case KindString:
		if _, ok := f.Default.(String); ok {
			return nil
		}
	case KindInt:
		if _, ok := f.Default.(Int); ok {
			return nil
		}
	case KindFloat:
		switch d := f.Default.(type) {
		case Float:
			return nil
		case Int:
			f.Default = Float(d)
			return nil
		}
	case KindBool:
		if _, ok := f.Default.(Bool); ok {
			return nil
		}
	default:
		return fmt.Errorf("defaults are only supported on primitive fields")
	}
	if _, ok := f.Default.(Null); ok && f.Nullable {
		return nil
	}
	return fmt.Errorf("default %s does not match type %s", typeName(f.Default), f.Type)
}

// Seal freezes the model after verifying every ref resolves.
func (m *Model) Seal() error {
	if err := m.Check(); err != nil {
		return err
	}
	m.sealed.Store(true)
	return nil
}

// Sealed reports whether Seal succeeded.
func (m *Model) Sealed() bool {
	return m.sealed.Load()
}

// Check reports every ref target that is not defined.
func (m *Model) Check() error {
	var missing []string
	for _, name := range m.order {
		for _, f := range m.shapes[name].Fields {
			if target, ok := m.unresolved(f.Type); !ok {
				missing = append(missing, fmt.Sprintf("%s.%s -> %s", name, f.Name, target))
			}
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return &UnresolvedError{Refs: missing}
	}
	return nil
}

func (m *Model) unresolved(t Type) (string, bool) {
	switch t.Kind {
	case KindList:
		return m.unresolved(*t.Elem)
	case KindShape, KindRef:
		if _, ok := m.shapes[t.Shape]; !ok {
			return t.Shape, false
		}
	}
	return "", true
}

// Lookup returns a handle for name if it is defined.
func (m *Model) Lookup(name string) (ShapeRef, bool) {
	_, ok := m.shapes[name]
	if !ok {
		return ShapeRef{}, false
	}
	return ShapeRef{name: name}, true
}

// Shape returns the definition behind ref. The result must not be modified.
func (m *Model) Shape(ref ShapeRef) (*Shape, error) {
	s, ok := m.shapes[ref.name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, ref.name)
	}
	return s, nil
}

// Names returns all shape names sorted lexically.
func (m *Model) Names() []string {
	names := slices.Clone(m.order)
	slices.Sort(names)
	return names
}

// Compatible reports whether a and b are structurally identical: same field
// names in the same order with identical types, flags and defaults, recursing
// into nested shapes. Shape names themselves are not compared.
func (m *Model) Compatible(a, b ShapeRef) bool {
	return m.compatible(a.name, b.name, make(map[[2]string]bool))
}

func (m *Model) compatible(a, b string, visiting map[[2]string]bool) bool {
	key := [2]string{a, b}
	if visiting[key] {
		// Already comparing this pair further up: assume equal (coinductive).
		return true
	}
	sa, okA := m.shapes[a]
	sb, okB := m.shapes[b]
	if !okA || !okB {
		return false
	}
	if sa.AllowUnknown != sb.AllowUnknown || len(sa.Fields) != len(sb.Fields) {
		return false
	}
	visiting[key] = true
	for i := range sa.Fields {
		fa, fb := sa.Fields[i], sb.Fields[i]
		if fa.Name != fb.Name || fa.Optional != fb.Optional || fa.Nullable != fb.Nullable || fa.Coerce != fb.Coerce {
			return false
		}
		if !sameDefault(fa.Default, fb.Default) {
			return false
		}
		if !m.compatibleType(fa.Type, fb.Type, visiting) {
			return false
		}
	}
	return true
}

func (m *Model) compatibleType(a, b Type, visiting map[[2]string]bool) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindList:
		return m.compatibleType(*a.Elem, *b.Elem, visiting)
	case KindShape, KindRef:
		return m.compatible(a.Shape, b.Shape, visiting)
	}
	return true
}

func sameDefault(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ca, errA := MarshalCanonical(a)
	cb, errB := MarshalCanonical(b)
	return errA == nil && errB == nil && string(ca) == string(cb)
}
