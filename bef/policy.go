package bef

import "github.com/tfrt-go/bef/diag"

// report records d in bundle, first promoting it from Warning to Fatal if
// the active policy is Strict (spec §9 "Degraded decoding on missing
// optional tables" — Strict turns every recoverable diagnostic into a hard
// failure instead of a placeholder substitution). It reports whether d is
// still a Warning after that promotion, so callers know whether to keep
// going with a placeholder or treat the diagnostic as terminal.
func report(opts decodeOptions, bundle *diag.Bundle, d *diag.Diagnostic) (stillWarning bool) {
	if d.Severity == diag.SeverityWarning && opts.policy == Strict {
		d.Severity = diag.SeverityFatal
	}
	bundle.Add(d)
	return d.Severity == diag.SeverityWarning
}
