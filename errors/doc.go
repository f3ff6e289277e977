// Package errors provides structured error types for the rubyext binding layer.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The three contract violations the binding layer can report map onto phases:
//
//	decode        handle bits map to no declared tag, or to a reserved variant
//	registration  a definition call returned a different variant than promised
//	encode        a name cannot be passed to the foreign runtime
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRegistration, errors.KindTypeMismatch).
//		Op("define_class").
//		Path("Outer", "Inner").
//		Want("Class").
//		Got("Module").
//		Build()
//
// Or use convenience constructors and the predicate helpers:
//
//	err := errors.Unsupported(h, "String")
//	if errors.IsUnsupported(err) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
