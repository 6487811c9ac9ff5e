package contract

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Violation is one problem found while validating a payload.
type Violation struct {
	Path    string `json:"path"`    // "email", "lines[2].amount"; "" for the payload root
	Message string `json:"message"` // human-readable
}

// ValidationError aggregates every violation found in a single pass.
type ValidationError struct {
	Shape      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		if v.Path == "" {
			parts[i] = v.Message
		} else {
			parts[i] = v.Path + ": " + v.Message
		}
	}
	return fmt.Sprintf("%s: %d violation(s): %s", e.Shape, len(e.Violations), strings.Join(parts, "; "))
}

// Paths returns the offending paths in report order.
func (e *ValidationError) Paths() []string {
	paths := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		paths[i] = v.Path
	}
	return paths
}

// ToValue renders the violations as the data carried by the wire-level
// ValidationError variant.
func (e *ValidationError) ToValue() Object {
	list := make(List, len(e.Violations))
	for i, v := range e.Violations {
		list[i] = NewObject(O("path", String(v.Path)), O("message", String(v.Message)))
	}
	return NewObject(O("violations", list))
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks raw against the shape behind ref, returning the normalised
// value: defaults injected, declared coercions applied. Every violation is
// collected before returning; the error is a *ValidationError.
//
// A ref naming no shape yields an ErrUnknownShape error instead, which callers
// must treat as an internal fault, not a caller mistake.
func (m *Model) Validate(ref ShapeRef, raw Value) (Object, error) {
	shape, err := m.Shape(ref)
	if err != nil {
		return nil, err
	}

	v := &validator{model: m}
	out := v.object(shape, raw, "")
	if v.fault != nil {
		return nil, v.fault
	}
	if len(v.violations) > 0 {
		return nil, &ValidationError{Shape: shape.Name, Violations: v.violations}
	}
	return out, nil
}

// ValidateJSON decodes data and validates it. An empty payload is treated as
// the empty object.
func (m *Model) ValidateJSON(ref ShapeRef, data []byte) (Object, error) {
	shape, err := m.Shape(ref)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return m.Validate(ref, Object{})
	}
	raw, err := DecodeJSON(data)
	if err != nil {
		return nil, &ValidationError{
			Shape:      shape.Name,
			Violations: []Violation{{Path: "", Message: "malformed JSON payload"}},
		}
	}
	return m.Validate(ref, raw)
}

type validator struct {
	model      *Model
	violations []Violation
	fault      error
}

func (v *validator) fail(path, format string, args ...any) {
	v.violations = append(v.violations, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
}

func join(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}

func (v *validator) object(shape *Shape, raw Value, path string) Object {
	obj, ok := raw.(Object)
	if !ok {
		v.fail(path, "expected object, got %s", typeName(raw))
		return nil
	}

	out := make(Object, len(shape.Fields))
	known := make(map[string]bool, len(shape.Fields))

	for _, f := range shape.Fields {
		known[f.Name] = true
		fpath := join(path, f.Name)

		val, present := obj[f.Name]
		if !present {
			switch {
			case f.Default != nil:
				out[f.Name] = f.Default
			case f.Optional:
			default:
				v.fail(fpath, "required field is missing")
			}
			continue
		}

		if _, isNull := val.(Null); isNull || val == nil {
			if f.Nullable {
				out[f.Name] = Null{}
			} else {
				v.fail(fpath, "must not be null")
			}
			continue
		}

		if cv, ok := v.value(f.Type, val, fpath, f.Coerce); ok {
			out[f.Name] = cv
		}
	}

	var unknown []string
	for k := range obj {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	slices.Sort(unknown)
	for _, k := range unknown {
		if shape.AllowUnknown {
			out[k] = obj[k]
			continue
		}
		v.fail(join(path, k), "unknown field")
	}

	return out
}

func (v *validator) value(t Type, raw Value, path string, coerce bool) (Value, bool) {
	switch t.Kind {
	case KindString:
		if s, ok := raw.(String); ok {
			return s, true
		}

	case KindInt:
		switch val := raw.(type) {
		case Int:
			return val, true
		case String:
			if coerce {
				if n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64); err == nil {
					return Int(n), true
				}
				v.fail(path, "expected integer or numeric string, got %q", string(val))
				return nil, false
			}
		}

	case KindFloat:
		switch val := raw.(type) {
		case Float:
			return val, true
		case Int:
			return Float(val), true
		case String:
			if coerce {
				if f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64); err == nil {
					return Float(f), true
				}
				v.fail(path, "expected number or numeric string, got %q", string(val))
				return nil, false
			}
		}

	case KindBool:
		if b, ok := raw.(Bool); ok {
			return b, true
		}

	case KindList:
		list, ok := raw.(List)
		if !ok {
			break
		}
		out := make(List, 0, len(list))
		valid := true
		for i, elem := range list {
			epath := fmt.Sprintf("%s[%d]", path, i)
			if _, isNull := elem.(Null); isNull || elem == nil {
				v.fail(epath, "must not be null")
				valid = false
				continue
			}
			cv, ok := v.value(*t.Elem, elem, epath, coerce)
			if !ok {
				valid = false
				continue
			}
			out = append(out, cv)
		}
		return out, valid

	case KindShape, KindRef:
		target, ok := v.model.shapes[t.Shape]
		if !ok {
			if v.fault == nil {
				v.fault = fmt.Errorf("%w: %q referenced at %s", ErrUnknownShape, t.Shape, path)
			}
			return nil, false
		}
		before := len(v.violations)
		out := v.object(target, raw, path)
		return out, len(v.violations) == before && out != nil
	}

	v.fail(path, "expected %s, got %s", t, typeName(raw))
	return nil, false
}
