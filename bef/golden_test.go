package bef

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestDecodeGoldenNativeFunction(t *testing.T) {
	strings_ := append([]byte("extern_fn\x00"), "i32\x00"...)
	types := newPayload().varint(1).varint(10).bytes()

	fnIndex := newPayload().
		varint(1).
		byteVal(byte(FunctionKindNative)).
		varint(0). // function_offset, unused for native functions
		varint(0). // name offset -> "extern_fn"
		varint(1).varint(0). // arg types: [i32]
		varint(1).varint(0). // result types: [i32]
		bytes()

	buf := newFixture().
		section(SectionFormatVersion, []byte{SupportedVersion}).
		section(SectionStrings, strings_).
		section(SectionTypes, types).
		section(SectionFunctionIndex, fnIndex).
		bytes()

	mod, bundle := Decode(buf, SourceLoc{Filename: "golden.bef"})
	if bundle.HasFatal() {
		t.Fatalf("unexpected fatal diagnostic: %v", bundle.Fatal())
	}

	g := goldie.New(t)
	g.Assert(t, "native_function", []byte(mod.Dump()))
}
