package rpc

import (
	"errors"
	"fmt"

	"github.com/roach88/tenantrpc/internal/contract"
)

// VariantError is a named, typed failure returned by a handler. Only
// variants the operation declares reach the caller; any other name is
// treated as an internal fault.
type VariantError struct {
	Name string
	Data contract.Value
}

func (e *VariantError) Error() string {
	return "rpc variant " + e.Name
}

// Fail builds a declared failure. data may be nil for variants without a
// data shape.
func Fail(name string, data contract.Value) error {
	return &VariantError{Name: name, Data: data}
}

// Failf is Fail for variants whose data is a single message field.
func Failf(name, format string, args ...any) error {
	return &VariantError{
		Name: name,
		Data: contract.Object{"message": contract.String(fmt.Sprintf(format, args...))},
	}
}

// IsVariant reports whether err is a VariantError called name.
// Uses errors.As to handle wrapped errors.
func IsVariant(err error, name string) bool {
	var ve *VariantError
	if errors.As(err, &ve) {
		return ve.Name == name
	}
	return false
}
