package bef

import "testing"

// TestDecodeNestedRegion builds a two-function BEF buffer by hand: a named
// "main" function whose sole kernel references an anonymous FunctionIndex
// entry representing a nested region body, and verifies the stitcher
// attaches that body as Operation.Regions rather than surfacing it as a
// second top-level function. Both bodies are encoded in the real
// location/register-table/kernel-table/result-regs/word-stream layout
// (spec §3, §4.D), with AttributeNames and RegisterTypes omitted (both
// optional; every marker/type falls back to its default).
func TestDecodeNestedRegion(t *testing.T) {
	// Strings pool: "main\0" + "call_region\0" + "\0" (the empty name used
	// by the anonymous nested-region function-index entry).
	strings_ := []byte("main\x00call_region\x00\x00")
	const callRegionOffset = 5
	const anonymousNameOffset = 17

	kernels := newPayload().varint(1).varint(callRegionOffset).bytes()

	// main's body: no declared registers, one kernel table entry for
	// "call_region" (no operands, no results, one function-index ref to
	// the anonymous region), no result registers (main has no results).
	mainBody := newPayload().
		varint(0). // location offset (unresolved, falls back to origin)
		varint(0). // register use-count array: 0 registers
		varint(1). // kernel table count
		varint(0). //   kernel[0].offset (byte offset into the word stream)
		varint(0). //   kernel[0].num_operands
		align(4).  // pad to the 4-byte-aligned kernel word stream
		u32(0).    // kernel_code -> kernelNames[0] == "call_region"
		u32(0).    // kernel_location (unresolved, falls back to origin)
		u32(0).    // num_arguments
		u32(0).    // num_attributes
		u32(1).    // num_functions
		u32(0).    // num_results
		// no used_by_counts (num_results == 0)
		// no arguments, no attributes
		u32(1). // functions[0] -> FunctionIndex[1] (anonymous region)
		// no results
		bytes()

	// nested region body: no registers, no kernels at all; its only
	// operation is the implicit hex.return with zero operands (it has no
	// declared results either).
	regionBody := newPayload().
		varint(0). // location offset
		varint(0). // register use-count array: 0 registers
		varint(0). // kernel table count: no kernels
		align(4).
		bytes()

	functions := append(append([]byte{}, mainBody...), regionBody...)
	regionOffset := uint64(len(mainBody))

	fnIndex := newPayload().
		varint(2).
		byteVal(byte(FunctionKindBEF)).varint(0).varint(0).varint(0).varint(0). // main: offset 0, name "main", no args/results
		byteVal(byte(FunctionKindBEF)).varint(regionOffset).varint(anonymousNameOffset).varint(0).varint(0). // anonymous region
		bytes()

	buf := newFixture().
		section(SectionFormatVersion, []byte{SupportedVersion}).
		section(SectionStrings, strings_).
		section(SectionKernels, kernels).
		section(SectionFunctionIndex, fnIndex).
		section(SectionFunctions, functions).
		bytes()

	mod, bundle := Decode(buf, SourceLoc{Filename: "nested.bef"})
	if bundle.HasFatal() {
		t.Fatalf("unexpected fatal diagnostic: %v", bundle.Fatal())
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1 (the anonymous region must not surface as top-level)", len(mod.Functions))
	}

	main := mod.Functions[0]
	if main.Name != "main" {
		t.Fatalf("Name = %q, want main", main.Name)
	}
	// call_region, then the implicit hex.return.
	if len(main.Region.Block.Operations) != 2 {
		t.Fatalf("Operations = %d, want 2", len(main.Region.Block.Operations))
	}

	op := main.Region.Block.Operations[0]
	if op.Name != "call_region" {
		t.Errorf("Name = %q, want call_region", op.Name)
	}
	if len(op.Regions) != 1 {
		t.Fatalf("Regions = %d, want 1", len(op.Regions))
	}
	// Just the nested region's own implicit hex.return.
	if len(op.Regions[0].Block.Operations) != 1 {
		t.Errorf("nested region has %d operations, want 1", len(op.Regions[0].Block.Operations))
	}

	ret := main.Region.Block.Operations[1]
	if ret.Name != "hex.return" {
		t.Errorf("Name = %q, want hex.return", ret.Name)
	}
	if len(ret.Operands) != 0 {
		t.Errorf("hex.return operands = %d, want 0", len(ret.Operands))
	}
}
