// Package errors provides structured error types for the sass bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a location path, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValue, errors.KindTypeMismatch).
//		Path("args", "0").
//		Detail("expected list").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidInput(errors.PhaseOptions, "options.sourceMap is true but options.outFile is not set")
//	err := errors.OutOfBounds(errors.PhaseValue, path, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
