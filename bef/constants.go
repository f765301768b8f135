package bef

// Magic is the two-byte BEF file prefix.
var Magic = [2]byte{0x0B, 0xEF}

// SupportedVersion is the single version byte the FormatVersion section
// must carry.
const SupportedVersion = 0

// KernelEntryAlignment is the byte alignment of kernel entries within a
// function's kernel stream.
const KernelEntryAlignment = 4

// Section identifiers. The set is closed; any id outside this set is
// skipped with a warning rather than rejected (spec §3, §4.B).
const (
	SectionFormatVersion     byte = 0
	SectionLocationFilenames byte = 1
	SectionLocationPositions byte = 2
	SectionStrings           byte = 3
	SectionAttributes        byte = 4
	SectionKernels           byte = 5
	SectionTypes             byte = 6
	SectionFunctions         byte = 7
	SectionFunctionIndex     byte = 8
	SectionAttributeTypes    byte = 9
	SectionAttributeNames    byte = 10
	SectionRegisterTypes     byte = 11
)

func knownSection(id byte) bool {
	switch id {
	case SectionFormatVersion, SectionLocationFilenames, SectionLocationPositions,
		SectionStrings, SectionAttributes, SectionKernels, SectionTypes,
		SectionFunctions, SectionFunctionIndex, SectionAttributeTypes,
		SectionAttributeNames, SectionRegisterTypes:
		return true
	default:
		return false
	}
}

func sectionName(id byte) string {
	switch id {
	case SectionFormatVersion:
		return "FormatVersion"
	case SectionLocationFilenames:
		return "LocationFilenames"
	case SectionLocationPositions:
		return "LocationPositions"
	case SectionStrings:
		return "Strings"
	case SectionAttributes:
		return "Attributes"
	case SectionKernels:
		return "Kernels"
	case SectionTypes:
		return "Types"
	case SectionFunctions:
		return "Functions"
	case SectionFunctionIndex:
		return "FunctionIndex"
	case SectionAttributeTypes:
		return "AttributeTypes"
	case SectionAttributeNames:
		return "AttributeNames"
	case SectionRegisterTypes:
		return "RegisterTypes"
	default:
		return "Unknown"
	}
}

// FunctionKind distinguishes a BEF function (has a region body, decoded
// from the Functions section) from a native function (external
// declaration, no body).
type FunctionKind byte

const (
	FunctionKindBEF    FunctionKind = 0
	FunctionKindNative FunctionKind = 1
)

// Attribute type descriptor kinds (low bits of the packed descriptor).
const (
	AttrKindStandard    byte = 0
	AttrKindBool        byte = 1
	AttrKindString      byte = 2
	AttrKindType        byte = 3
	AttrKindDenseElems  byte = 4
	AttrKindFlatArray   byte = 5
	AttrKindOffsetArray byte = 6
)

// attrKindMask and attrKindShift split a packed attribute-type descriptor
// into its kind (low byte) and payload (remaining bits).
const (
	attrKindMask  = 0xFF
	attrKindShift = 8
)

func splitAttrDescriptor(descriptor uint64) (kind byte, payload uint64) {
	return byte(descriptor & attrKindMask), descriptor >> attrKindShift
}

// Type-attribute byte encoding (§4.C "type" attribute kind).
const (
	TypeAttrI1  byte = 0
	TypeAttrI32 byte = 1
	TypeAttrI64 byte = 2
	TypeAttrF16 byte = 3
	TypeAttrF32 byte = 4
	TypeAttrF64 byte = 5
)

func typeAttrName(b byte) (string, bool) {
	switch b {
	case TypeAttrI1:
		return "i1", true
	case TypeAttrI32:
		return "i32", true
	case TypeAttrI64:
		return "i64", true
	case TypeAttrF16:
		return "f16", true
	case TypeAttrF32:
		return "f32", true
	case TypeAttrF64:
		return "f64", true
	default:
		return "", false
	}
}

func standardAttrByteWidth(name string) (int, bool) {
	switch name {
	case "i1":
		return 1, true
	case "i32", "f32":
		return 4, true
	case "i64", "f64":
		return 8, true
	case "f16":
		return 2, true
	default:
		return 0, false
	}
}

// SpecialAttribute marks the one reserved byte consumed from the
// AttributeNames stream before a kernel's ordinary attributes.
type SpecialAttribute byte

const (
	SpecialAttributeNone      SpecialAttribute = 0
	SpecialAttributeNonStrict SpecialAttribute = 1
)

// placeholderAttributeValue is substituted for a kernel attribute whose
// offset cannot be resolved (missing AttributeTypes, or an unknown
// descriptor kind). Spec §9 Open Questions flags this as possibly
// unintended but required for the decoder to keep producing well-formed IR.
const placeholderAttributeValue uint32 = 0xDEADBEEF
