package registry

import (
	"fmt"
	"sort"

	"github.com/roach88/tenantrpc/internal/contract"
)

// FromDeclarations registers every declared operation, in declaration order,
// binding each to its handler. A declaration without a handler, or a handler
// without a declaration, is an error.
func (r *Registry) FromDeclarations(decls []contract.OperationDecl, handlers map[string]Handler) error {
	declared := make(map[string]bool, len(decls))

	for _, d := range decls {
		declared[d.Name] = true

		level, err := ParseLevel(d.Level)
		if err != nil {
			return &RegistrationError{Operation: d.Name, Message: err.Error()}
		}
		h, ok := handlers[d.Name]
		if !ok {
			return &RegistrationError{Operation: d.Name, Message: "no handler bound"}
		}

		op := Operation{
			Name:    d.Name,
			Level:   level,
			Input:   contract.Ref(d.Input),
			Output:  contract.Ref(d.Output),
			Doc:     d.Doc,
			Handler: h,
		}
		for _, e := range d.Errors {
			v := ErrorVariant{Name: e.Name}
			if e.Data != "" {
				v.Data = contract.Ref(e.Data)
			}
			op.Errors = append(op.Errors, v)
		}

		if err := r.Register(op); err != nil {
			return err
		}
	}

	var extra []string
	for name := range handlers {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return fmt.Errorf("handlers bound to undeclared operations: %v", extra)
	}
	return nil
}
