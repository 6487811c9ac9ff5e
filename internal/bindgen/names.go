package bindgen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tenantrpc/internal/registry"
)

// Identifiers the client header declares.
var (
	headerTypes  = []string{"Result", "Envelope", "Transport", "RpcUnknown"}
	headerValues = []string{"call", "httpTransport"}
)

// CollisionError reports TypeScript identifiers that two declarations in the
// client would both claim. Shapes share the type namespace with each
// operation's error union and the header types; operation functions share
// the value namespace with the header functions.
type CollisionError struct {
	Collisions []string
}

func (e *CollisionError) Error() string {
	return "generated identifiers collide: " + strings.Join(e.Collisions, "; ")
}

func errorTypeName(op string) string {
	return pascal(op) + "Error"
}

func checkIdentifiers(ops []*registry.Operation, names []string) error {
	types := make(map[string]string)
	values := make(map[string]string)
	for _, t := range headerTypes {
		types[t] = "client header"
	}
	for _, bt := range builtinTypes {
		types[bt.tsType] = "client header"
	}
	for _, v := range headerValues {
		values[v] = "client header"
	}

	var collisions []string
	claim := func(space map[string]string, ident, owner string) {
		if prev, taken := space[ident]; taken {
			collisions = append(collisions, fmt.Sprintf("%s (%s, %s)", ident, prev, owner))
			return
		}
		space[ident] = owner
	}

	for _, name := range names {
		claim(types, name, "shape "+name)
	}
	for _, op := range ops {
		owner := "operation " + op.Name
		claim(types, errorTypeName(op.Name), owner)
		claim(values, camel(op.Name), owner)
	}

	if len(collisions) == 0 {
		return nil
	}
	slices.Sort(collisions)
	return &CollisionError{Collisions: collisions}
}
