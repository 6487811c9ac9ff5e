package contract

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Declarations is the compiled content of a CUE contract file.
type Declarations struct {
	Shapes     []ShapeDecl
	Operations []OperationDecl
}

// ShapeDecl is a shape as written in CUE, before it is defined in a Model.
type ShapeDecl struct {
	Name         string
	Fields       []Field
	AllowUnknown bool
	Pos          token.Pos
}

// OperationDecl is the language-neutral declaration of an operation. The
// registry binds it to a handler.
type OperationDecl struct {
	Name   string
	Level  string
	Input  string
	Output string
	Errors []ErrorDecl
	Doc    string
	Pos    token.Pos
}

// ErrorDecl declares an error variant and the optional shape of its data.
type ErrorDecl struct {
	Name string
	Data string
}

// CompileError is a contract-file error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadCUE compiles a CUE contract file.
//
// The file declares shapes and operations:
//
//	shape: LoginInput: {
//		email:      "string"
//		password:   "string"
//		tenant_id?: "string"
//	}
//
//	shape: Page: {
//		limit: {type: "int", default: 50, coerce: true}
//	}
//
//	operation: login: {
//		level:  "public"
//		input:  "LoginInput"
//		output: "SessionInfo"
//		errors: ["InvalidCredentials"]
//	}
//
// Optional CUE fields (name?) become optional contract fields. A field may
// be a type expression string or a struct with type, optional, nullable,
// default and coerce. Shape-level flags go under shape_options.
func LoadCUE(filename string, src []byte) (*Declarations, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decls := &Declarations{}

	shapes, err := parseShapes(v)
	if err != nil {
		return nil, err
	}
	decls.Shapes = shapes

	ops, err := parseOperations(v)
	if err != nil {
		return nil, err
	}
	decls.Operations = ops

	return decls, nil
}

func parseShapes(root cue.Value) ([]ShapeDecl, error) {
	shapesVal := root.LookupPath(cue.ParsePath("shape"))
	if !shapesVal.Exists() {
		return nil, nil
	}

	iter, err := shapesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ShapeDecl
	for iter.Next() {
		name := iter.Label()
		shapeVal := iter.Value()

		decl := ShapeDecl{Name: name, Pos: shapeVal.Pos()}

		allow := root.LookupPath(cue.MakePath(cue.Str("shape_options"), cue.Str(name), cue.Str("allow_unknown")))
		if allow.Exists() {
			b, err := allow.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			decl.AllowUnknown = b
		}

		fieldIter, err := shapeVal.Fields(cue.Optional(true))
		if err != nil {
			return nil, formatCUEError(err)
		}
		for fieldIter.Next() {
			field, err := parseField(fieldIter.Label(), fieldIter.Value(), fieldIter.IsOptional())
			if err != nil {
				return nil, err
			}
			decl.Fields = append(decl.Fields, field)
		}

		decls = append(decls, decl)
	}
	return decls, nil
}

func parseField(name string, v cue.Value, optional bool) (Field, error) {
	field := Field{Name: name, Optional: optional}
	path := "field " + name

	if expr, err := v.String(); err == nil {
		t, err := ParseType(expr)
		if err != nil {
			return field, &CompileError{Field: path, Message: err.Error(), Pos: v.Pos()}
		}
		field.Type = t
		return field, nil
	}

	if v.IncompleteKind() != cue.StructKind {
		return field, &CompileError{
			Field:   path,
			Message: "must be a type expression string or a struct with a type field",
			Pos:     v.Pos(),
		}
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return field, &CompileError{Field: path, Message: "type is required", Pos: v.Pos()}
	}
	expr, err := typeVal.String()
	if err != nil {
		return field, formatCUEError(err)
	}
	t, err := ParseType(expr)
	if err != nil {
		return field, &CompileError{Field: path + ".type", Message: err.Error(), Pos: typeVal.Pos()}
	}
	field.Type = t

	for _, flag := range []struct {
		key string
		dst *bool
	}{
		{"optional", &field.Optional},
		{"nullable", &field.Nullable},
		{"coerce", &field.Coerce},
	} {
		fv := v.LookupPath(cue.ParsePath(flag.key))
		if !fv.Exists() {
			continue
		}
		b, err := fv.Bool()
		if err != nil {
			return field, formatCUEError(err)
		}
		*flag.dst = *flag.dst || b
	}

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		raw, err := dv.MarshalJSON()
		if err != nil {
			return field, formatCUEError(err)
		}
		def, err := DecodeJSON(raw)
		if err != nil {
			return field, &CompileError{Field: path + ".default", Message: err.Error(), Pos: dv.Pos()}
		}
		field.Default = def
	}

	return field, nil
}

func parseOperations(root cue.Value) ([]OperationDecl, error) {
	opsVal := root.LookupPath(cue.ParsePath("operation"))
	if !opsVal.Exists() {
		return nil, nil
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []OperationDecl
	for iter.Next() {
		name := iter.Label()
		opVal := iter.Value()
		decl := OperationDecl{Name: name, Pos: opVal.Pos()}

		for _, req := range []struct {
			key string
			dst *string
		}{
			{"level", &decl.Level},
			{"input", &decl.Input},
			{"output", &decl.Output},
		} {
			fv := opVal.LookupPath(cue.ParsePath(req.key))
			if !fv.Exists() {
				return nil, &CompileError{
					Field:   fmt.Sprintf("operation.%s.%s", name, req.key),
					Message: req.key + " is required",
					Pos:     opVal.Pos(),
				}
			}
			s, err := fv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			*req.dst = s
		}

		if docVal := opVal.LookupPath(cue.ParsePath("doc")); docVal.Exists() {
			doc, err := docVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			decl.Doc = strings.TrimSpace(doc)
		}

		errsVal := opVal.LookupPath(cue.ParsePath("errors"))
		if errsVal.Exists() {
			list, err := errsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for list.Next() {
				ev := list.Value()
				if s, err := ev.String(); err == nil {
					decl.Errors = append(decl.Errors, ErrorDecl{Name: s})
					continue
				}
				nameVal := ev.LookupPath(cue.ParsePath("name"))
				errName, err := nameVal.String()
				if err != nil {
					return nil, &CompileError{
						Field:   fmt.Sprintf("operation.%s.errors", name),
						Message: "error variants must be names or {name, data} structs",
						Pos:     ev.Pos(),
					}
				}
				ed := ErrorDecl{Name: errName}
				if dataVal := ev.LookupPath(cue.ParsePath("data")); dataVal.Exists() {
					if ed.Data, err = dataVal.String(); err != nil {
						return nil, formatCUEError(err)
					}
				}
				decl.Errors = append(decl.Errors, ed)
			}
		}

		decls = append(decls, decl)
	}
	return decls, nil
}

// DefineShapes defines every declared shape in m. Shapes nested by name are
// defined after their dependencies regardless of file order; a cycle of
// by-name nesting is an error (recursion must go through ref<...>).
func (d *Declarations) DefineShapes(m *Model) error {
	pending := slices.Clone(d.Shapes)
	for len(pending) > 0 {
		var next []ShapeDecl
		for _, decl := range pending {
			if !dependenciesDefined(m, decl.Fields) {
				next = append(next, decl)
				continue
			}
			var opts []ShapeOption
			if decl.AllowUnknown {
				opts = append(opts, AllowUnknown())
			}
			if _, err := m.Define(decl.Name, decl.Fields, opts...); err != nil {
				return &CompileError{Field: "shape." + decl.Name, Message: err.Error(), Pos: decl.Pos}
			}
		}
		if len(next) == len(pending) {
			names := make([]string, len(next))
			for i, decl := range next {
				names[i] = decl.Name
			}
			return &CompileError{
				Field:   "shape",
				Message: fmt.Sprintf("unresolvable nesting among %s (undefined shape or by-name cycle; use ref<...>)", strings.Join(names, ", ")),
				Pos:     next[0].Pos,
			}
		}
		pending = next
	}
	return nil
}

func dependenciesDefined(m *Model, fields []Field) bool {
	var ok func(t Type) bool
	ok = func(t Type) bool {
		switch t.Kind {
		case KindList:
			return ok(*t.Elem)
		case KindShape:
			_, defined := m.shapes[t.Shape]
			return defined
		}
		return true
	}
	for _, f := range fields {
		if !ok(f.Type) {
			return false
		}
	}
	return true
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
