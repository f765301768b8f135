package bef

import "github.com/tfrt-go/bef/diag"

// stitch runs component E in the same two-phase shape as the source
// converter: phase one decodes every BEF-kind FunctionIndex entry — named
// and anonymous alike — into a region, in FunctionIndex order, so the
// shared AttributeNames/RegisterTypes cursors are consumed in exactly the
// order the encoder laid functions out; phase two is pure linking, with no
// further decoding, resolving each kernel's function-index references into
// either a Callees entry (named target) or an already-decoded nested
// Region (anonymous target) (spec §4.E "region stitcher").
func stitch(functionsPayload []byte, p *pools, streams *functionStreams, origin SourceLoc, opts decodeOptions, bundle *diag.Bundle) (*Module, error) {
	decoded := make(map[FunctionHandle]*Region, len(p.functionIndex))
	var allPending []pendingRegion

	for idx := range p.functionIndex {
		entry := &p.functionIndex[idx]
		if entry.Kind == FunctionKindNative {
			continue
		}
		region, pend, err := decodeFunction(functionsPayload, entry.FunctionOffset, entry, p, streams, origin, opts, bundle)
		if err != nil {
			return nil, err
		}
		decoded[FunctionHandle(idx)] = region
		allPending = append(allPending, pend...)
	}

	mod := &Module{}
	for idx := range p.functionIndex {
		entry := &p.functionIndex[idx]
		if !entry.named() {
			continue
		}
		fn := &Function{
			Name:        entry.Name,
			Kind:        entry.Kind,
			ArgTypes:    entry.ArgTypes,
			ResultTypes: entry.ResultTypes,
			Region:      decoded[FunctionHandle(idx)],
			Loc:         origin,
		}
		if fn.Region != nil {
			fn.Loc = fn.Region.Loc
		}
		mod.Functions = append(mod.Functions, fn)
	}

	for _, pr := range allPending {
		for _, handle := range pr.Handles {
			entry, ok := p.functionAt(uint64(handle))
			if !ok {
				bundle.Add(diag.Fatal(diag.PhaseStitch, diag.KindUnresolvedRegion, origin,
					"operation %q references function index %d, out of range", pr.Op.Name, handle))
				continue
			}
			if entry.named() {
				pr.Op.Callees = append(pr.Op.Callees, entry.Name)
				continue
			}
			region, ok := decoded[handle]
			if !ok {
				bundle.Add(diag.Fatal(diag.PhaseStitch, diag.KindUnresolvedRegion, origin,
					"operation %q references function index %d, never decoded as a region", pr.Op.Name, handle))
				continue
			}
			pr.Op.Regions = append(pr.Op.Regions, region)
		}
	}

	return mod, nil
}
