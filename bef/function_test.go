package bef

import (
	"testing"

	"github.com/tfrt-go/bef/diag"
)

// TestDecodeArgumentReturnedDirectly covers the worked example of a
// single-argument, single-result function whose entire body is "return
// arg0": one pseudo-kernel defining the argument register, no ordinary
// kernels, and a return op whose sole operand is that argument.
func TestDecodeArgumentReturnedDirectly(t *testing.T) {
	// Strings: "f\0i32\0"
	strings_ := []byte("f\x00i32\x00")
	const fNameOffset = 0
	const i32Offset = 2

	types := newPayload().varint(1).varint(i32Offset).bytes()

	body := newPayload().
		varint(0). // location offset
		varint(1). // register use-count array: 1 register
		varint(1). //   register[0] declared uses = 1 (consumed by hex.return)
		varint(1). // kernel table count: just the arguments pseudo-kernel
		varint(0). //   kernel[0].offset
		varint(0). //   kernel[0].num_operands
		varint(0). // result-regs[0]: register 0
		align(4).
		// pseudo-kernel word entry
		u32(0). // kernel_code (unused for pseudo-kernels)
		u32(0). // kernel_location
		u32(0). // num_arguments
		u32(0). // num_attributes
		u32(0). // num_functions
		u32(1). // num_results -> one argument register
		u32(0). // used_by_counts[0] = 0 (return isn't tracked as a consuming kernel)
		u32(0). // results[0] = register 0
		bytes()

	fnIndex := newPayload().
		varint(1).
		byteVal(byte(FunctionKindBEF)).varint(0).varint(fNameOffset).
		varint(1).varint(0). // argTypes = [i32]
		varint(1).varint(0). // resultTypes = [i32]
		bytes()

	buf := newFixture().
		section(SectionFormatVersion, []byte{SupportedVersion}).
		section(SectionStrings, strings_).
		section(SectionTypes, types).
		section(SectionFunctionIndex, fnIndex).
		section(SectionFunctions, body).
		bytes()

	mod, bundle := Decode(buf, SourceLoc{Filename: "arg_return.bef"})
	if bundle.HasFatal() {
		t.Fatalf("unexpected fatal diagnostic: %v", bundle.Fatal())
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1", len(mod.Functions))
	}

	fn := mod.Functions[0]
	if fn.Name != "f" {
		t.Fatalf("Name = %q, want f", fn.Name)
	}
	if len(fn.Region.Block.Args) != 1 {
		t.Fatalf("Args = %d, want 1", len(fn.Region.Block.Args))
	}
	if len(fn.Region.Block.Operations) != 1 {
		t.Fatalf("Operations = %d, want 1 (just the implicit return)", len(fn.Region.Block.Operations))
	}

	ret := fn.Region.Block.Operations[0]
	if ret.Name != "hex.return" {
		t.Errorf("Name = %q, want hex.return", ret.Name)
	}
	if len(ret.Operands) != 1 {
		t.Fatalf("Operands = %d, want 1", len(ret.Operands))
	}
	if ret.Operands[0] != fn.Region.Block.Args[0] {
		t.Error("hex.return's operand is not the function's argument register")
	}
}

// TestDecodeUndefinedRegisterIsFatal covers a kernel whose operand names a
// register index equal to the register table's size: undefined, and
// therefore fatal regardless of policy.
func TestDecodeUndefinedRegisterIsFatal(t *testing.T) {
	// Strings: "bad\0noop\0"
	strings_ := []byte("bad\x00noop\x00")
	const fNameOffset = 0
	const noopOffset = 4

	kernels := newPayload().varint(1).varint(noopOffset).bytes()

	body := newPayload().
		varint(0). // location offset
		varint(0). // register use-count array: no registers declared
		varint(1). // kernel table count
		varint(0). //   kernel[0].offset
		varint(1). //   kernel[0].num_operands
		align(4).
		u32(0). // kernel_code -> "noop"
		u32(0). // kernel_location
		u32(1). // num_arguments
		u32(0). // num_attributes
		u32(0). // num_functions
		u32(0). // num_results
		u32(0). // arguments[0]: register 0, out of range (0 registers declared)
		bytes()

	fnIndex := newPayload().
		varint(1).
		byteVal(byte(FunctionKindBEF)).varint(0).varint(fNameOffset).varint(0).varint(0).
		bytes()

	buf := newFixture().
		section(SectionFormatVersion, []byte{SupportedVersion}).
		section(SectionStrings, strings_).
		section(SectionKernels, kernels).
		section(SectionFunctionIndex, fnIndex).
		section(SectionFunctions, body).
		bytes()

	mod, bundle := Decode(buf, SourceLoc{Filename: "undefined_register.bef"})
	if mod != nil {
		t.Fatalf("expected nil module, got %v", mod)
	}
	if !bundle.HasFatal() {
		t.Fatal("expected a fatal diagnostic")
	}
	if bundle.Fatal().Kind != diag.KindUndefinedRegister {
		t.Errorf("Kind = %v, want %v", bundle.Fatal().Kind, diag.KindUndefinedRegister)
	}
}

// TestDecodeOrderedNestedRegions covers a kernel referencing two unnamed
// nested regions: after stitching, the operation's Regions slice preserves
// encounter order (R1 before R2), and neither region surfaces as a
// top-level function.
func TestDecodeOrderedNestedRegions(t *testing.T) {
	// Strings: "main\0link_regions\0r1.marker\0r2.marker\0\0"
	strings_ := []byte("main\x00link_regions\x00r1.marker\x00r2.marker\x00\x00")
	const mainNameOffset = 0
	const linkRegionsOffset = 5
	const r1MarkerOffset = 18
	const r2MarkerOffset = 28
	const anonymousNameOffset = 38

	kernels := newPayload().varint(3).varint(linkRegionsOffset).varint(r1MarkerOffset).varint(r2MarkerOffset).bytes()

	regionBody := func(kernelCode uint32) []byte {
		return newPayload().
			varint(0). // location offset
			varint(0). // register use-count array: no registers
			varint(1). // kernel table count
			varint(0). //   kernel[0].offset
			varint(0). //   kernel[0].num_operands
			align(4).
			u32(kernelCode). // kernel_code -> "r1.marker" or "r2.marker"
			u32(0).          // kernel_location
			u32(0).          // num_arguments
			u32(0).          // num_attributes
			u32(0).          // num_functions
			u32(0).          // num_results
			bytes()
	}
	r1Body := regionBody(1)
	r2Body := regionBody(2)

	mainBody := newPayload().
		varint(0). // location offset
		varint(0). // register use-count array: no registers
		varint(1). // kernel table count
		varint(0). //   kernel[0].offset
		varint(0). //   kernel[0].num_operands
		align(4).
		u32(0). // kernel_code -> "link_regions"
		u32(0). // kernel_location
		u32(0). // num_arguments
		u32(0). // num_attributes
		u32(2). // num_functions -> [R1, R2]
		u32(0). // num_results
		u32(1). // functions[0] -> FunctionIndex[1] (R1)
		u32(2). // functions[1] -> FunctionIndex[2] (R2)
		bytes()

	functions := append(append(append([]byte{}, mainBody...), r1Body...), r2Body...)
	r1Offset := uint64(len(mainBody))
	r2Offset := r1Offset + uint64(len(r1Body))

	fnIndex := newPayload().
		varint(3).
		byteVal(byte(FunctionKindBEF)).varint(0).varint(mainNameOffset).varint(0).varint(0).
		byteVal(byte(FunctionKindBEF)).varint(r1Offset).varint(anonymousNameOffset).varint(0).varint(0).
		byteVal(byte(FunctionKindBEF)).varint(r2Offset).varint(anonymousNameOffset).varint(0).varint(0).
		bytes()

	buf := newFixture().
		section(SectionFormatVersion, []byte{SupportedVersion}).
		section(SectionStrings, strings_).
		section(SectionKernels, kernels).
		section(SectionFunctionIndex, fnIndex).
		section(SectionFunctions, functions).
		bytes()

	mod, bundle := Decode(buf, SourceLoc{Filename: "ordered_regions.bef"})
	if bundle.HasFatal() {
		t.Fatalf("unexpected fatal diagnostic: %v", bundle.Fatal())
	}
	if len(mod.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1 (R1/R2 must not surface as top-level)", len(mod.Functions))
	}

	op := mod.Functions[0].Region.Block.Operations[0]
	if op.Name != "link_regions" {
		t.Fatalf("Name = %q, want link_regions", op.Name)
	}
	if len(op.Regions) != 2 {
		t.Fatalf("Regions = %d, want 2", len(op.Regions))
	}
	if got := op.Regions[0].Block.Operations[0].Name; got != "r1.marker" {
		t.Errorf("Regions[0] op = %q, want r1.marker", got)
	}
	if got := op.Regions[1].Block.Operations[0].Name; got != "r2.marker" {
		t.Errorf("Regions[1] op = %q, want r2.marker", got)
	}
}
