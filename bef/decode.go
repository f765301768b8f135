// Package bef decodes TFRT's BEF (Binary Executable Format) container into
// an in-memory IR module: functions, regions, operations, registers, and
// attributes. Decoding runs in five phases — magic/section split, table
// loading, per-function body decoding, and a two-pass region stitcher —
// mirroring the source converter's own pipeline.
package bef

import (
	"go.uber.org/zap"

	"github.com/tfrt-go/bef/diag"
)

// Decode parses a BEF buffer into a Module. origin names the source the
// buffer came from (used in diagnostics and as the location fallback for
// positions the decoder cannot recover). The returned Bundle carries every
// diagnostic emitted during decode, in order; call bundle.HasFatal() to
// check whether mod is nil.
//
// Under the default Lenient policy, recoverable conditions (a missing
// optional table, an unresolved attribute offset) degrade to a warning and
// a placeholder value rather than aborting. WithPolicy(Strict) promotes
// every such warning to a fatal diagnostic instead.
func Decode(buf []byte, origin SourceLoc, opts ...Option) (*Module, *diag.Bundle) {
	options := newDecodeOptions(opts...)
	bundle := &diag.Bundle{}
	log := options.logger.With(zap.String("origin", origin.String()))

	sections, err := splitSections(buf, origin, options, bundle)
	if err != nil {
		log.Warn("decode aborted", zap.String("phase", string(diag.PhaseSection)), zap.Error(err))
		addFatal(bundle, err)
		return nil, bundle
	}
	if bundle.HasFatal() {
		log.Warn("decode aborted by promoted warning", zap.String("phase", string(diag.PhaseSection)))
		return nil, bundle
	}
	log.Debug("sections split", zap.Int("count", len(sections)))

	p, err := loadTables(sections, origin, options, bundle)
	if err != nil {
		log.Warn("decode aborted", zap.String("phase", string(diag.PhaseTable)), zap.Error(err))
		addFatal(bundle, err)
		return nil, bundle
	}
	log.Debug("tables loaded", zap.Int("functions", len(p.functionIndex)))

	streams := newFunctionStreams(sections[SectionAttributeNames], sections[SectionRegisterTypes])

	mod, err := stitch(sections[SectionFunctions], p, streams, origin, options, bundle)
	if err != nil {
		log.Warn("decode aborted", zap.String("phase", string(diag.PhaseStitch)), zap.Error(err))
		addFatal(bundle, err)
		return nil, bundle
	}

	if bundle.HasFatal() {
		log.Warn("decode aborted by promoted warning", zap.String("phase", string(diag.PhaseStitch)))
		return nil, bundle
	}
	log.Debug("decode complete", zap.Int("functions", len(mod.Functions)))
	return mod, bundle
}

// addFatal records err in bundle if it is not already present there. Every
// error surfaced by the decode pipeline is a *diag.Diagnostic built via
// diag.Fatal, but callers that construct one directly (rather than
// threading it through a Bundle first) still need it recorded before the
// caller returns.
func addFatal(bundle *diag.Bundle, err error) {
	if d, ok := err.(*diag.Diagnostic); ok {
		if bundle.Fatal() != d {
			bundle.Add(d)
		}
		return
	}
}
