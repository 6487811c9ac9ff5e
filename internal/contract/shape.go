package contract

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the closed set of field type constructors.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindList   Kind = "list"

	// KindShape nests a shape that must already be defined. Chains of
	// KindShape references are therefore acyclic by construction.
	KindShape Kind = "shape"

	// KindRef is the explicit indirection marker. It may name the enclosing
	// shape or one defined later, which is how recursive structures are
	// declared. Refs are resolved lazily during validation.
	KindRef Kind = "ref"
)

// Type describes the value a field accepts.
type Type struct {
	Kind  Kind
	Elem  *Type  // element type for KindList
	Shape string // target shape name for KindShape and KindRef
}

// Convenience constructors.
func StringType() Type { return Type{Kind: KindString} }
func IntType() Type { return Type{Kind: KindInt} }
func FloatType() Type { return Type{Kind: KindFloat} }
func BoolType() Type { return Type{Kind: KindBool} }
func ShapeType(name string) Type { return Type{Kind: KindShape, Shape: name} }
func RefType(name string) Type { return Type{Kind: KindRef, Shape: name} }

// ListType returns a list of elem.
func ListType(elem Type) Type {
	return Type{Kind: KindList, Elem: &elem}
}

// String renders the type in the same expression syntax ParseType accepts:
// "string", "list<int>", "Profile", "ref<Node>".
func (t Type) String() string {
	switch t.Kind {
	case KindList:
		if t.Elem == nil {
			return "list<?>"
		}
		return "list<" + t.Elem.String() + ">"
	case KindShape:
		return t.Shape
	case KindRef:
		return "ref<" + t.Shape + ">"
	default:
		return string(t.Kind)
	}
}

// Equal reports structural equality of two type expressions (by name for
// nested shapes; see Model.Compatible for deep structural comparison).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Shape != o.Shape {
		return false
	}
	if t.Kind != KindList {
		return true
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equal(*o.Elem)
}

// ParseType parses a type expression.
//
//	string | int | float | bool | list<T> | ref<Name> | Name
func ParseType(expr string) (Type, error) {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "string":
		return StringType(), nil
	case "int":
		return IntType(), nil
	case "float":
		return FloatType(), nil
	case "bool":
		return BoolType(), nil
	}

	if inner, ok := unwrap(expr, "list<"); ok {
		elem, err := ParseType(inner)
		if err != nil {
			return Type{}, err
		}
		return ListType(elem), nil
	}
	if inner, ok := unwrap(expr, "ref<"); ok {
		if !shapeNamePattern.MatchString(inner) {
			return Type{}, fmt.Errorf("invalid ref target %q", inner)
		}
		return RefType(inner), nil
	}
	if shapeNamePattern.MatchString(expr) {
		return ShapeType(expr), nil
	}
	return Type{}, fmt.Errorf("invalid type expression %q", expr)
}

func unwrap(expr, prefix string) (string, bool) {
	if strings.HasPrefix(expr, prefix) && strings.HasSuffix(expr, ">") {
		return strings.TrimSpace(expr[len(prefix) : len(expr)-1]), true
	}
	return "", false
}

// Field is a named member of a shape.
type Field struct {
	Name     string
	Type     Type
	Optional bool  // may be absent
	Nullable bool  // may be JSON null
	Default  Value // injected when absent; implies Optional
	Coerce   bool  // accept numeric strings for int/float fields
}

// Shape is a named structural type.
type Shape struct {
	Name         string
	Fields       []Field
	AllowUnknown bool
}

// ShapeRef is a non-owning handle to a shape in a Model.
type ShapeRef struct {
	name string
}

// Ref returns a handle for name without checking that it exists.
// Used when declaring operations whose shapes are resolved at generation time.
func Ref(name string) ShapeRef {
	return ShapeRef{name: name}
}

// Name returns the referenced shape name.
func (r ShapeRef) Name() string { return r.name }

// IsZero reports whether r references nothing.
func (r ShapeRef) IsZero() bool { return r.name == "" }

func (r ShapeRef) String() string { return r.name }

// ShapeOption configures a shape at definition time.
type ShapeOption func(*Shape)

// AllowUnknown makes validation pass unknown fields through instead of
// rejecting them.
func AllowUnknown() ShapeOption {
	return func(s *Shape) { s.AllowUnknown = true }
}

var (
	shapeNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)
