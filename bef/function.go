package bef

import (
	"fmt"

	"github.com/tfrt-go/bef/diag"
	"github.com/tfrt-go/bef/internal/binary"
)

// functionStreams holds the two section-wide cursors that are consumed
// across every BEF-kind function body in FunctionIndex order, rather than
// being re-sliced per function: AttributeNames (one marker byte per
// kernel-table entry, plus one attribute-name offset per attribute) and
// RegisterTypes (one count-prefixed array of type handles per function,
// positional by register index). Both sections are optional; a nil reader
// means every marker/type falls back to its default (spec §9 "Degraded
// decoding on missing optional tables").
type functionStreams struct {
	attrNames *binary.Reader
	regTypes  *binary.Reader
}

func newFunctionStreams(attrNamesPayload, regTypesPayload []byte) *functionStreams {
	s := &functionStreams{}
	if len(attrNamesPayload) > 0 {
		s.attrNames = binary.NewReader(attrNamesPayload)
	}
	if len(regTypesPayload) > 0 {
		s.regTypes = binary.NewReader(regTypesPayload)
	}
	return s
}

func (s *functionStreams) nextMarker() (SpecialAttribute, bool) {
	if s.attrNames == nil || s.attrNames.Empty() {
		return SpecialAttributeNone, false
	}
	b, err := s.attrNames.ReadU8()
	if err != nil {
		return SpecialAttributeNone, false
	}
	return SpecialAttribute(b), true
}

// nextAttributeNameOffset reads one Strings-pool offset for a kernel's Nth
// attribute name, consumed immediately after that kernel's marker byte.
func (s *functionStreams) nextAttributeNameOffset() (uint64, bool) {
	if s.attrNames == nil {
		return 0, false
	}
	v, err := s.attrNames.ReadVarint()
	if err != nil {
		return 0, false
	}
	return v, true
}

// nextRegisterTypeArray reads one function's worth of register type
// handles: a varint count followed by that many varint TypeHandles,
// positional by register index.
func (s *functionStreams) nextRegisterTypeArray() ([]TypeHandle, bool) {
	if s.regTypes == nil {
		return nil, false
	}
	raw, err := s.regTypes.ReadVarintArray()
	if err != nil {
		return nil, false
	}
	handles := make([]TypeHandle, len(raw))
	for i, h := range raw {
		handles[i] = TypeHandle(h)
	}
	return handles, true
}

// pendingRegion is a deferred link between an operation and the
// function-index entries its kernel referenced, left unresolved until
// stitch.go's resolution pass (spec §4.E "region stitcher").
type pendingRegion struct {
	Op      *Operation
	Handles []FunctionHandle
}

// kernelTableEntry is one (offset, num_operands) pair naming where a
// kernel's word entry starts within the function's 4-byte-aligned kernel
// stream (spec §4.D step 3; ReadKernelTable).
type kernelTableEntry struct {
	Offset      uint64 // byte offset into the aligned kernel entry stream
	NumOperands uint64
}

// kernelWords is one decoded kernel entry: the fixed u32 header followed
// by the variable-length entry stream (arguments, attributes, function
// refs, results) and each result's used-by kernel indices (spec §4.D step
// 6; BEFKernel/ReadKernel).
type kernelWords struct {
	Code      uint32
	Location  uint32
	Arguments []uint32
	Attrs     []uint32
	Functions []uint32
	Results   []uint32
	UsedBys   [][]uint32 // UsedBys[i] lists the kernel indices that use Results[i]
}

// readKernelEntry decodes one kernel word-entry at kr's current position:
// six u32 header words (kernel_code, kernel_location, num_arguments,
// num_attributes, num_functions, num_results), then num_results used-by
// counts, then the entry stream itself in that same order, then each
// result's used-by list.
func readKernelEntry(kr *binary.Reader) (*kernelWords, error) {
	code, err := kr.ReadU32LE()
	if err != nil {
		return nil, err
	}
	location, err := kr.ReadU32LE()
	if err != nil {
		return nil, err
	}
	numArgs, err := kr.ReadU32LE()
	if err != nil {
		return nil, err
	}
	numAttrs, err := kr.ReadU32LE()
	if err != nil {
		return nil, err
	}
	numFuncs, err := kr.ReadU32LE()
	if err != nil {
		return nil, err
	}
	numResults, err := kr.ReadU32LE()
	if err != nil {
		return nil, err
	}

	usedByCounts := make([]uint32, numResults)
	for i := range usedByCounts {
		usedByCounts[i], err = kr.ReadU32LE()
		if err != nil {
			return nil, err
		}
	}

	args, err := readU32Words(kr, numArgs)
	if err != nil {
		return nil, err
	}
	attrs, err := readU32Words(kr, numAttrs)
	if err != nil {
		return nil, err
	}
	funcs, err := readU32Words(kr, numFuncs)
	if err != nil {
		return nil, err
	}
	results, err := readU32Words(kr, numResults)
	if err != nil {
		return nil, err
	}

	usedBys := make([][]uint32, numResults)
	for i := range usedBys {
		usedBys[i], err = readU32Words(kr, usedByCounts[i])
		if err != nil {
			return nil, err
		}
	}

	return &kernelWords{
		Code:      code,
		Location:  location,
		Arguments: args,
		Attrs:     attrs,
		Functions: funcs,
		Results:   results,
		UsedBys:   usedBys,
	}, nil
}

func readU32Words(kr *binary.Reader, n uint32) ([]uint32, error) {
	out := make([]uint32, n)
	for i := range out {
		v, err := kr.ReadU32LE()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// decodeFunction decodes one function body rooted at byteOffset within the
// Functions section payload (component D): function location, register
// table, kernel table, result-register array, a 4-byte alignment, and then
// the kernel word stream itself, followed by the function's implicit
// return (spec §3 steps 1-9; ReadFunction/ReadKernels). It returns the
// function's single-block region and any pending nested-region links its
// kernels recorded.
func decodeFunction(functionsPayload []byte, byteOffset uint64, entry *functionIndexEntry, p *pools, streams *functionStreams, origin SourceLoc, opts decodeOptions, bundle *diag.Bundle) (*Region, []pendingRegion, error) {
	if byteOffset > uint64(len(functionsPayload)) {
		return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
			"function %q: offset %d beyond Functions section", entry.Name, byteOffset)
	}
	r := binary.NewReader(functionsPayload[byteOffset:])

	locOffset, err := r.ReadVarint()
	if err != nil {
		return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
			"function %q: location offset: %v", entry.Name, err)
	}
	loc := p.locationAt(locOffset, origin)

	regTypeHandles, haveRegTypes := streams.nextRegisterTypeArray()

	regUses, err := r.ReadVarintArray()
	if err != nil {
		return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
			"function %q: register use table: %v", entry.Name, err)
	}
	registers := make([]*Register, len(regUses))
	for i, uses := range regUses {
		reg := &Register{DeclaredUses: int(uses), Type: NoneType}
		if haveRegTypes && i < len(regTypeHandles) {
			if t, ok := p.typeAt(uint64(regTypeHandles[i])); ok {
				reg.Type = t
			} else {
				report(opts, bundle, diag.Warn(diag.PhaseFunction, diag.KindTypeOutOfRange, origin,
					"function %q: register %d type handle %d out of range, using none", entry.Name, i, regTypeHandles[i]))
			}
		}
		registers[i] = reg
	}

	numKernelEntries, err := r.ReadVarint()
	if err != nil {
		return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
			"function %q: kernel table count: %v", entry.Name, err)
	}
	kernelTable := make([]kernelTableEntry, numKernelEntries)
	for i := range kernelTable {
		off, err := r.ReadVarint()
		if err != nil {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
				"function %q: kernel table entry %d offset: %v", entry.Name, i, err)
		}
		numOperands, err := r.ReadVarint()
		if err != nil {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
				"function %q: kernel table entry %d num_operands: %v", entry.Name, i, err)
		}
		kernelTable[i] = kernelTableEntry{Offset: off, NumOperands: numOperands}
	}

	resultRegs := make([]uint64, len(entry.ResultTypes))
	for i := range resultRegs {
		resultRegs[i], err = r.ReadVarint()
		if err != nil {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
				"function %q: result register %d: %v", entry.Name, i, err)
		}
	}

	if err := r.ReadAligned(KernelEntryAlignment); err != nil {
		return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
			"function %q: kernel stream alignment: %v", entry.Name, err)
	}
	kernelStream, err := r.Take(r.Remaining())
	if err != nil {
		return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
			"function %q: kernel stream: %v", entry.Name, err)
	}

	block := &Block{}
	var pending []pendingRegion

	for i, kte := range kernelTable {
		// Every kernel-table entry, including the synthetic arguments
		// pseudo-kernel, consumes one marker byte from the AttributeNames
		// stream; skipping it here would desync the shared cursor for
		// every kernel after it.
		marker, _ := streams.nextMarker()

		byteOff := int(kte.Offset)
		if byteOff < 0 || byteOff > len(kernelStream) {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
				"function %q kernel %d: table offset %d beyond kernel stream", entry.Name, i, kte.Offset)
		}
		if byteOff%KernelEntryAlignment != 0 {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
				"function %q kernel %d: table offset %d not %d-byte aligned", entry.Name, i, kte.Offset, KernelEntryAlignment)
		}
		kw, err := readKernelEntry(binary.NewReader(kernelStream[byteOff:]))
		if err != nil {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
				"function %q kernel %d: entry: %v", entry.Name, i, err)
		}
		if uint64(len(kw.Arguments)) != kte.NumOperands {
			report(opts, bundle, diag.Warn(diag.PhaseFunction, diag.KindBadSection, origin,
				"function %q kernel %d: kernel table num_operands %d disagrees with entry's %d argument(s)",
				entry.Name, i, kte.NumOperands, len(kw.Arguments)))
		}

		if i == 0 && len(entry.ArgTypes) > 0 {
			if err := decodeArgumentsPseudoKernel(kw, registers, entry, block, origin); err != nil {
				return nil, nil, err
			}
			continue
		}

		op, pend, err := decodeKernel(kw, p, registers, streams, origin, opts, bundle, entry.Name, uint64(i))
		if err != nil {
			return nil, nil, err
		}
		op.NonStrict = marker == SpecialAttributeNonStrict
		block.Operations = append(block.Operations, op)
		if pend != nil {
			pending = append(pending, *pend)
		}
	}

	returnOp := &Operation{Name: "hex.return", Loc: loc}
	for i, regIdx := range resultRegs {
		if regIdx >= uint64(len(registers)) || !registers[regIdx].defined {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindUndefinedRegister, origin,
				"function %q: return operand %d references undefined register %d", entry.Name, i, regIdx)
		}
		reg := registers[regIdx]
		reg.ObservedUses++
		returnOp.Operands = append(returnOp.Operands, reg)
	}
	block.Operations = append(block.Operations, returnOp)

	for _, reg := range registers {
		if !reg.defined {
			bundle.Add(diag.Fatal(diag.PhaseFunction, diag.KindUndefinedRegister, origin,
				"function %q: register never assigned", entry.Name))
			continue
		}
		if reg.ObservedUses != reg.DeclaredUses {
			report(opts, bundle, diag.Warn(diag.PhaseFunction, diag.KindUseCountMismatch, origin,
				"function %q: register declared %d use(s), observed %d", entry.Name, reg.DeclaredUses, reg.ObservedUses))
		}
	}

	return &Region{Loc: loc, Block: block}, pending, nil
}

// decodeArgumentsPseudoKernel handles kernel-table entry 0 when the
// function declares at least one argument: it carries no operands,
// attributes, or function refs, and its "results" are the register indices
// that become the block's arguments (spec §4.D step 7; ReadArgumentsPseudoKernel).
func decodeArgumentsPseudoKernel(kw *kernelWords, registers []*Register, entry *functionIndexEntry, block *Block, origin SourceLoc) error {
	if len(kw.Results) != len(entry.ArgTypes) {
		return diag.Fatal(diag.PhaseFunction, diag.KindBadSection, origin,
			"function %q: arguments pseudo-kernel declares %d result(s), want %d argument(s)",
			entry.Name, len(kw.Results), len(entry.ArgTypes))
	}
	for i, regIdx := range kw.Results {
		if uint64(regIdx) >= uint64(len(registers)) {
			return diag.Fatal(diag.PhaseFunction, diag.KindUndefinedRegister, origin,
				"function %q: argument %d register %d out of range", entry.Name, i, regIdx)
		}
		reg := registers[regIdx]
		if reg.defined {
			return diag.Fatal(diag.PhaseFunction, diag.KindRegisterRedefined, origin,
				"function %q: argument %d register %d already defined", entry.Name, i, regIdx)
		}
		reg.defined = true
		reg.IsBlockArg = true
		reg.ArgIndex = i
		block.Args = append(block.Args, reg)
		reg.UsedByKernels = append(reg.UsedByKernels, kw.UsedBys[i]...)
	}
	return nil
}

// decodeKernel decodes one ordinary kernel entry's operands, attributes,
// nested/callee function-index references, and results against the
// function's shared register table (spec §3 "Decoded IR", §4.D step 8;
// ReadKernel).
func decodeKernel(kw *kernelWords, p *pools, registers []*Register, streams *functionStreams, origin SourceLoc, opts decodeOptions, bundle *diag.Bundle, fnName string, kernelIdx uint64) (*Operation, *pendingRegion, error) {
	if uint64(kw.Code) >= uint64(len(p.kernelNames)) {
		return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindFunctionOutOfRange, origin,
			"function %q kernel %d: kernel code %d out of range", fnName, kernelIdx, kw.Code)
	}

	op := &Operation{
		Name:       p.kernelNames[kw.Code],
		Loc:        p.locationAt(uint64(kw.Location), origin),
		Attributes: make(map[string]*Attribute, len(kw.Attrs)),
	}

	for _, regIdx := range kw.Arguments {
		if uint64(regIdx) >= uint64(len(registers)) {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindUndefinedRegister, origin,
				"function %q kernel %d: operand register %d out of range", fnName, kernelIdx, regIdx)
		}
		reg := registers[regIdx]
		reg.ObservedUses++
		op.Operands = append(op.Operands, reg)
	}

	for i, attrOff := range kw.Attrs {
		attr, ok := p.attributeAt(uint64(attrOff))
		if !ok {
			attr = &Attribute{Placeholder: true, Int: uint64(placeholderAttributeValue)}
			report(opts, bundle, diag.Warn(diag.PhaseFunction, diag.KindUnknownAttribute, origin,
				"function %q kernel %d: attribute %d offset %d unresolved, using placeholder", fnName, kernelIdx, i, attrOff))
		}
		name := fmt.Sprintf("attr%d", i)
		if nameOff, ok := streams.nextAttributeNameOffset(); ok {
			if s, ok2 := p.stringAt(nameOff); ok2 {
				name = s
			}
		}
		op.Attributes[name] = attr
		op.AttrOrder = append(op.AttrOrder, name)
	}

	var pend *pendingRegion
	if len(kw.Functions) > 0 {
		handles := make([]FunctionHandle, len(kw.Functions))
		for i, h := range kw.Functions {
			handles[i] = FunctionHandle(h)
		}
		pend = &pendingRegion{Op: op, Handles: handles}
	}

	for i, regIdx := range kw.Results {
		if uint64(regIdx) >= uint64(len(registers)) {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindUndefinedRegister, origin,
				"function %q kernel %d: result %d register %d out of range", fnName, kernelIdx, i, regIdx)
		}
		reg := registers[regIdx]
		if reg.defined {
			return nil, nil, diag.Fatal(diag.PhaseFunction, diag.KindRegisterRedefined, origin,
				"function %q kernel %d: result %d register %d already defined", fnName, kernelIdx, i, regIdx)
		}
		reg.defined = true
		reg.Op = op
		reg.ResultIndex = i
		op.Results = append(op.Results, reg)
		reg.UsedByKernels = append(reg.UsedByKernels, kw.UsedBys[i]...)
	}

	return op, pend, nil
}
