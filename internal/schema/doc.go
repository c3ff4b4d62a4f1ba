// Package schema validates raw, structurally untyped payloads against static
// field-descriptor tables.
//
// A Schema is a list of Field descriptors (name, semantic kind, required or
// optional, default, raw key). Validate walks the table once, never the
// payload, so unknown raw keys are ignored and no reflection is involved.
//
// # Special kinds
//
// KindPrimaryKey designates the field that supplies a record's identity.
// KindDependency stores the raw foreign key of another resource unresolved;
// dereferencing it is left to the caller. KindNested validates each element
// of a list against a sub-schema; one failing element fails the parent, so a
// Result never carries a partial nested list.
//
// # Errors
//
// Failures are reported as *ValidationError, which matches ErrValidation via
// errors.Is and names the first offending field and its reason.
package schema
