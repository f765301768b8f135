package bef

import (
	"testing"

	"github.com/tfrt-go/bef/diag"
)

func minimalBuffer() []byte {
	return newFixture().
		section(SectionFormatVersion, []byte{SupportedVersion}).
		section(SectionFunctionIndex, newPayload().varint(0).bytes()).
		bytes()
}

func TestDecodeEmptyModule(t *testing.T) {
	origin := SourceLoc{Filename: "empty.bef"}
	mod, bundle := Decode(minimalBuffer(), origin)

	if bundle.HasFatal() {
		t.Fatalf("unexpected fatal diagnostic: %v", bundle.Fatal())
	}
	if mod == nil {
		t.Fatal("expected non-nil module")
	}
	if len(mod.Functions) != 0 {
		t.Errorf("Functions = %v, want empty", mod.Functions)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	buf := append([]byte{0x00, 0x00}, minimalBuffer()[2:]...)
	mod, bundle := Decode(buf, SourceLoc{Filename: "bad.bef"})

	if mod != nil {
		t.Fatalf("expected nil module, got %v", mod)
	}
	if !bundle.HasFatal() {
		t.Fatal("expected fatal diagnostic for bad magic")
	}
	if bundle.Fatal().Kind != diag.KindBadMagic {
		t.Errorf("Kind = %v, want %v", bundle.Fatal().Kind, diag.KindBadMagic)
	}
}

func TestDecodeMissingOptionalTablesWarnOnce(t *testing.T) {
	// Omit AttributeTypes, AttributeNames, and RegisterTypes entirely: per
	// the source converter, this degrades decoding gracefully and emits a
	// single combined warning rather than one per missing section.
	mod, bundle := Decode(minimalBuffer(), SourceLoc{Filename: "degraded.bef"})
	if bundle.HasFatal() {
		t.Fatalf("unexpected fatal: %v", bundle.Fatal())
	}
	if mod == nil {
		t.Fatal("expected non-nil module under lenient policy")
	}

	var missing int
	for _, d := range bundle.All() {
		if d.Kind == diag.KindMissingOptionalTable {
			missing++
		}
	}
	if missing != 1 {
		t.Errorf("got %d MissingOptionalTable diagnostics, want exactly 1", missing)
	}
}

func TestDecodeStrictPolicyPromotesWarnings(t *testing.T) {
	_, bundle := Decode(minimalBuffer(), SourceLoc{Filename: "strict.bef"}, WithPolicy(Strict))
	if !bundle.HasFatal() {
		t.Fatal("expected Strict policy to promote the missing-table warning to fatal")
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	buf := newFixture().
		section(SectionFormatVersion, []byte{SupportedVersion + 1}).
		bytes()
	mod, bundle := Decode(buf, SourceLoc{Filename: "version.bef"})
	if mod != nil {
		t.Fatal("expected nil module for unsupported version")
	}
	if bundle.Fatal() == nil || bundle.Fatal().Kind != diag.KindUnsupportedVersion {
		t.Errorf("expected UnsupportedVersion fatal, got %v", bundle.Fatal())
	}
}
