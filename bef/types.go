package bef

import "github.com/tfrt-go/bef/diag"

// SourceLoc is a position in the original (pre-BEF) source.
type SourceLoc = diag.SourceLoc

// StringHandle is the byte offset of a string's first byte within the
// Strings pool.
type StringHandle uint32

// TypeHandle is the positional index of a parsed entry within the Types
// pool.
type TypeHandle uint32

// KernelNameHandle is the positional index of a kernel name within the
// Kernels pool.
type KernelNameHandle uint32

// AttributeHandle is the byte offset of an attribute within the
// Attributes pool.
type AttributeHandle uint32

// FunctionHandle is the positional index of an entry within the
// FunctionIndex section.
type FunctionHandle uint32

// Type is the decoder's IR type representation. BEF types are opaque
// strings parsed from the Strings pool (see spec §3 "Type pool"); the
// decoder reconstructs IR without type inference or verification, so a
// Type is carried as its raw spelling rather than deeply parsed.
type Type struct {
	// Raw is the type's textual spelling as it appeared in the Strings pool
	// (e.g. "i32", "!t.tensor"), or "none" for the opaque default assigned
	// to registers with no RegisterTypes entry.
	Raw string
}

// NoneType is the opaque placeholder type used for registers whose type
// could not be recovered from a (missing) RegisterTypes section.
var NoneType = Type{Raw: "none"}

func (t Type) String() string { return t.Raw }

// AttributeKind tags the shape of a decoded Attribute.
type AttributeKind byte

const (
	AttrStandardInt AttributeKind = iota
	AttrStandardFloat
	AttrBool
	AttrString
	AttrType
	AttrDenseElements
	AttrArray // result of both flat-array and offset-array descriptors
)

// DenseElements is a ranked tensor constant (spec §4.C "dense-elements").
type DenseElements struct {
	DType    Type
	Shape    []int64
	Elements []*Attribute
}

// Attribute is a decoded BEF attribute. Exactly one of the value fields is
// meaningful, selected by Kind.
type Attribute struct {
	Kind        AttributeKind
	Int         uint64
	Float       float64
	Bool        bool
	Str         string
	TypeValue   Type
	Dense       *DenseElements
	Array       []*Attribute
	Placeholder bool // substituted 0xDEADBEEF value for an unresolved offset
}

// Register tracks one function-local register: its declared type and use
// count, the kernel indices that consume it, and the value it is assigned
// exactly once (spec §3 "Register", state machine Declared -> Defined).
type Register struct {
	Type          Type
	DeclaredUses  int
	ObservedUses  int
	UsedByKernels []uint32

	defined bool
	// Producer identifies what assigned this register: either a block
	// argument index (IsBlockArg true) or an operation result.
	IsBlockArg  bool
	ArgIndex    int
	Op          *Operation
	ResultIndex int
}

// Defined reports whether this register has been assigned a producer.
func (r *Register) Defined() bool { return r.defined }

// Block is the single basic block of a region: arguments followed by an
// ordered list of operations, the last of which is always a return.
type Block struct {
	Args       []*Register
	Operations []*Operation
}

// Region is an ordered block of operations: a named function's body, or a
// region nested inside an operation (spec §3 "Region").
type Region struct {
	Loc   SourceLoc
	Block *Block
}

// Operation is one decoded kernel: a name, source location, operands,
// results, attributes, optional nested regions, and optional callee
// symbol references (spec §3 "Decoded IR").
type Operation struct {
	Name       string
	Loc        SourceLoc
	Operands   []*Register
	Results    []*Register
	Attributes map[string]*Attribute
	// AttrOrder preserves the order attributes were attached in, since the
	// kernel stream encodes them positionally and map iteration does not.
	AttrOrder []string
	NonStrict bool
	Regions   []*Region
	Callees   []string
}

// Function is one top-level function entity. Its Kind reports whether it
// is a BEF function (Kind == FunctionKindBEF, has a Region) or a native
// external declaration (Kind == FunctionKindNative, Region is nil).
type Function struct {
	Name        string
	Kind        FunctionKind
	ArgTypes    []Type
	ResultTypes []Type
	Region      *Region // nil for native functions
	Loc         SourceLoc
}

// Module is the decoded IR: an ordered list of top-level function entities
// (spec §3 "Decoded IR"). The module exclusively owns its functions; each
// function exclusively owns its region; each region exclusively owns its
// block; each block exclusively owns its operations.
type Module struct {
	Functions []*Function
}
