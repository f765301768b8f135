package diag

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// SourceLoc identifies a position in the original (pre-BEF) source, or the
// caller-supplied origin when no finer-grained location is available.
type SourceLoc struct {
	Filename string
	Line     int
	Column   int
}

func (l SourceLoc) String() string {
	if l.Filename == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Column)
}

// Phase identifies which decoder component raised a diagnostic.
type Phase string

const (
	PhaseMagic    Phase = "magic"    // container header / magic / version
	PhaseSection  Phase = "section"  // section splitter (component B)
	PhaseTable    Phase = "table"    // table loader (component C)
	PhaseFunction Phase = "function" // function-body decoder (component D)
	PhaseStitch   Phase = "stitch"   // region stitcher (component E)
)

// Kind categorizes a diagnostic per spec §7.
type Kind string

const (
	KindBadMagic             Kind = "bad_magic"
	KindUnsupportedVersion   Kind = "unsupported_version"
	KindTruncated            Kind = "truncated"
	KindBadSection           Kind = "bad_section"
	KindStringOutOfRange     Kind = "string_out_of_range"
	KindTypeOutOfRange       Kind = "type_out_of_range"
	KindFunctionOutOfRange   Kind = "function_out_of_range"
	KindUndefinedRegister    Kind = "undefined_register"
	KindRegisterRedefined    Kind = "register_redefined"
	KindRegisterTypeMismatch Kind = "register_type_mismatch"
	KindUnresolvedRegion     Kind = "unresolved_region"
	KindUnknownAttribute     Kind = "unknown_attribute"
	KindUnknownType          Kind = "unknown_type"
	KindMissingOptionalTable Kind = "missing_optional_table"
	KindUseCountMismatch     Kind = "use_count_mismatch"
)

// Severity distinguishes diagnostics that abort decoding from ones that are
// recorded and substituted with a placeholder.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityFatal
)

func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "warning"
}

// Diagnostic is one issued diagnostic, fatal or recoverable.
type Diagnostic struct {
	Phase    Phase
	Kind     Kind
	Severity Severity
	Loc      SourceLoc
	Detail   string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(d.Phase))
	b.WriteString("] ")
	b.WriteString(string(d.Kind))
	b.WriteString(" (")
	b.WriteString(d.Severity.String())
	b.WriteString(") at ")
	b.WriteString(d.Loc.String())
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	return b.String()
}

// Is reports whether target matches this diagnostic's phase and kind,
// allowing errors.Is(err, &diag.Diagnostic{Phase: ..., Kind: ...}).
func (d *Diagnostic) Is(target error) bool {
	t, ok := target.(*Diagnostic)
	if !ok {
		return false
	}
	return d.Phase == t.Phase && d.Kind == t.Kind
}

// Builder constructs a Diagnostic fluently.
type Builder struct {
	d Diagnostic
}

// New starts a Builder for the given phase and kind, defaulting to Fatal.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{d: Diagnostic{Phase: phase, Kind: kind, Severity: SeverityFatal}}
}

func (b *Builder) Loc(loc SourceLoc) *Builder {
	b.d.Loc = loc
	return b
}

func (b *Builder) Detail(format string, args ...any) *Builder {
	b.d.Detail = fmt.Sprintf(format, args...)
	return b
}

func (b *Builder) Severity(s Severity) *Builder {
	b.d.Severity = s
	return b
}

func (b *Builder) Build() *Diagnostic {
	d := b.d
	return &d
}

// Fatal is a convenience constructor for an aborting diagnostic.
func Fatal(phase Phase, kind Kind, loc SourceLoc, format string, args ...any) *Diagnostic {
	return New(phase, kind).Loc(loc).Severity(SeverityFatal).Detail(format, args...).Build()
}

// Warn is a convenience constructor for a recoverable diagnostic.
func Warn(phase Phase, kind Kind, loc SourceLoc, format string, args ...any) *Diagnostic {
	return New(phase, kind).Loc(loc).Severity(SeverityWarning).Detail(format, args...).Build()
}

// Bundle aggregates every diagnostic issued during one decode, in issuance
// order. The first Fatal diagnostic is recorded separately and short-
// circuits the decode; warnings keep accumulating via multierr so callers
// can inspect the full set with errors.Is / multierr.Errors.
type Bundle struct {
	all      []*Diagnostic
	warnings error
	fatal    *Diagnostic
}

// Add records d. Fatal diagnostics are kept as the bundle's terminal error
// only if one hasn't already been recorded (first fatal wins, per spec §7).
func (b *Bundle) Add(d *Diagnostic) {
	b.all = append(b.all, d)
	if d.Severity == SeverityFatal {
		if b.fatal == nil {
			b.fatal = d
		}
		return
	}
	b.warnings = multierr.Append(b.warnings, d)
}

// HasFatal reports whether a fatal diagnostic has been recorded.
func (b *Bundle) HasFatal() bool { return b.fatal != nil }

// Fatal returns the first fatal diagnostic recorded, or nil.
func (b *Bundle) Fatal() *Diagnostic { return b.fatal }

// All returns every diagnostic in issuance order.
func (b *Bundle) All() []*Diagnostic { return b.all }

// Warnings returns the recoverable diagnostics combined via multierr.
func (b *Bundle) Warnings() error { return b.warnings }

// Error implements the error interface so a *Bundle can be returned and
// compared directly; it reports the fatal diagnostic if any, else a summary
// of accumulated warnings.
func (b *Bundle) Error() string {
	if b.fatal != nil {
		return b.fatal.Error()
	}
	if b.warnings != nil {
		return fmt.Sprintf("%d warning(s): %v", len(multierr.Errors(b.warnings)), b.warnings)
	}
	return "no diagnostics"
}
