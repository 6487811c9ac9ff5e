// Package contract is the canonical, language-neutral description of the
// payloads operations accept and return.
//
// A Model owns named shapes. Operations, the dispatcher and the binding
// generator refer to shapes only through non-owning ShapeRef handles.
//
// Key constraints:
//   - Validation collects every violation in one pass; it never stops at the
//     first bad field.
//   - Unknown fields are rejected unless a shape opts out with AllowUnknown.
//   - Numeric strings are coerced only on fields declared with Coerce.
//   - Recursion goes through the explicit ref<Name> indirection; by-name
//     nesting must point at an already defined shape, so values are always
//     validated against an acyclic definition graph walked by the payload.
//   - A Model is read-only after Seal.
package contract
