// Package errors provides structured error types for the schemabuf module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, layout and Go type names, and
// cause chain.
//
// The three categories callers usually branch on are exposed as sentinels:
//
//	errors.ErrInvalidLayout       malformed layout, fatal to its registration
//	errors.ErrUnimplementedLayout valid layout combination that is not supported
//	errors.ErrValueMismatch       value does not conform to its layout at encode time
//
// Sentinels carry no Phase and therefore match errors from any phase:
//
//	if errors.Is(err, schemaerrors.ErrValueMismatch) { ... }
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindValueMismatch).
//		Path("room", "creeps").
//		GoType("string").
//		Layout("vector").
//		Detail("expected a sequence").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidLayout(path, "array length must be positive")
//	err := errors.OutOfBounds(errors.PhaseDecode, path, 10, 5)
package errors
