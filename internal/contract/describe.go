package contract

// Description is the language-neutral view of a shape consumed by binding
// generators.
type Description struct {
	Name         string
	AllowUnknown bool
	Fields       []FieldDescription
}

// FieldDescription describes one field of a shape.
type FieldDescription struct {
	Name     string
	Type     Type
	Optional bool
	Nullable bool
	Coerce   bool
	Default  Value
}

// Describe returns the structural description of ref.
func (m *Model) Describe(ref ShapeRef) (Description, error) {
	s, err := m.Shape(ref)
	if err != nil {
		return Description{}, err
	}

	d := Description{
		Name:         s.Name,
		AllowUnknown: s.AllowUnknown,
		Fields:       make([]FieldDescription, len(s.Fields)),
	}
	for i, f := range s.Fields {
		d.Fields[i] = FieldDescription{
			Name:     f.Name,
			Type:     f.Type,
			Optional: f.Optional,
			Nullable: f.Nullable,
			Coerce:   f.Coerce,
			Default:  f.Default,
		}
	}
	return d, nil
}

// References returns the shape names d mentions directly, in field order,
// without duplicates.
func (d Description) References() []string {
	var refs []string
	seen := make(map[string]bool)
	var walk func(t Type)
	walk = func(t Type) {
		switch t.Kind {
		case KindList:
			walk(*t.Elem)
		case KindShape, KindRef:
			if !seen[t.Shape] {
				seen[t.Shape] = true
				refs = append(refs, t.Shape)
			}
		}
	}
	for _, f := range d.Fields {
		walk(f.Type)
	}
	return refs
}

// ToValue renders d as a contract Object suitable for canonical encoding.
func (d Description) ToValue() Object {
	fields := make(List, len(d.Fields))
	for i, f := range d.Fields {
		fo := NewObject(
			O("name", String(f.Name)),
			O("type", String(f.Type.String())),
			O("optional", Bool(f.Optional)),
			O("nullable", Bool(f.Nullable)),
		)
		if f.Coerce {
			fo["coerce"] = Bool(true)
		}
		if f.Default != nil {
			fo["default"] = f.Default
		}
		fields[i] = fo
	}
	obj := NewObject(
		O("name", String(d.Name)),
		O("fields", fields),
	)
	if d.AllowUnknown {
		obj["allow_unknown"] = Bool(true)
	}
	return obj
}
