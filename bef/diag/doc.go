// Package diag provides structured diagnostics for the BEF decoder.
//
// Diagnostics are categorized by Phase (which decoder component raised
// them) and Kind (the error category from spec §7). Warnings are
// recoverable and accumulate in a Bundle; the first Fatal diagnostic
// aborts decoding and is returned alongside any warnings issued so far.
//
// Use the Builder for structured construction:
//
//	d := diag.New(diag.PhaseFunction, diag.KindUndefinedRegister).
//		Loc(loc).
//		Detail("register 3 used before definition").
//		Build()
//
// Or use the convenience constructors for common cases:
//
//	d := diag.Fatal(diag.PhaseFunction, diag.KindUndefinedRegister, loc, "...")
//	d := diag.Warn(diag.PhaseTable, diag.KindMissingOptionalTable, loc, "...")
package diag
