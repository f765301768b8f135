package bef

import (
	"github.com/tfrt-go/bef/diag"
	"github.com/tfrt-go/bef/internal/binary"
)

// functionIndexEntry is one resolved FunctionIndex record (spec §3
// "Function index").
type functionIndexEntry struct {
	Kind           FunctionKind
	FunctionOffset uint64
	Name           string // empty iff unnamed
	ArgTypes       []Type
	ResultTypes    []Type
}

func (f *functionIndexEntry) named() bool { return f.Name != "" }

// pools holds every non-function table decoded by component C, addressed
// by the handle types defined in types.go.
type pools struct {
	locationFilenames []string
	locationPositions map[uint64]SourceLoc // keyed by byte offset within LocationPositions payload
	strings           []byte               // raw Strings payload; looked up by byte offset
	types             []Type
	kernelNames       []string
	attributes        map[uint64]*Attribute // keyed by byte offset within Attributes payload
	functionIndex     []functionIndexEntry
}

func (p *pools) stringAt(offset uint64) (string, bool) {
	o := int(offset)
	if o < 0 || o >= len(p.strings) {
		return "", false
	}
	end := o
	for end < len(p.strings) && p.strings[end] != 0 {
		end++
	}
	if end >= len(p.strings) {
		return "", false
	}
	return string(p.strings[o:end]), true
}

func (p *pools) typeAt(handle uint64) (Type, bool) {
	if handle >= uint64(len(p.types)) {
		return Type{}, false
	}
	return p.types[handle], true
}

func (p *pools) filenameAt(index uint64) (string, bool) {
	if index >= uint64(len(p.locationFilenames)) {
		return "", false
	}
	return p.locationFilenames[index], true
}

func (p *pools) locationAt(offset uint64, origin SourceLoc) SourceLoc {
	if loc, ok := p.locationPositions[offset]; ok {
		return loc
	}
	return origin
}

func (p *pools) attributeAt(offset uint64) (*Attribute, bool) {
	a, ok := p.attributes[offset]
	return a, ok
}

func (p *pools) functionAt(index uint64) (*functionIndexEntry, bool) {
	if index >= uint64(len(p.functionIndex)) {
		return nil, false
	}
	return &p.functionIndex[index], true
}

// loadTables runs component C: it decodes every section other than
// Functions, AttributeNames and RegisterTypes (the last two are consumed
// during function-body decoding), populating a pools arena. Sections are processed in the
// dependency order the Data Model requires (locations before nothing;
// strings before types/kernels/function index; attribute types before
// attributes).
func loadTables(sections map[byte][]byte, origin SourceLoc, opts decodeOptions, bundle *diag.Bundle) (*pools, error) {
	if fv, ok := sections[SectionFormatVersion]; ok {
		if len(fv) != 1 || fv[0] != SupportedVersion {
			return nil, diag.Fatal(diag.PhaseTable, diag.KindUnsupportedVersion, origin,
				"got version bytes %v, want single byte %d", fv, SupportedVersion)
		}
	} else {
		return nil, diag.Fatal(diag.PhaseTable, diag.KindUnsupportedVersion, origin, "missing FormatVersion section")
	}

	p := &pools{
		locationPositions: make(map[uint64]SourceLoc),
		attributes:        make(map[uint64]*Attribute),
		strings:           sections[SectionStrings],
	}

	p.locationFilenames = splitNULTerminated(sections[SectionLocationFilenames])

	if err := loadLocationPositions(sections[SectionLocationPositions], p, origin, bundle); err != nil {
		return nil, err
	}

	if err := loadOffsetPool(sections[SectionTypes], p, origin, bundle, func(s string) any { return Type{Raw: s} },
		func(v any) { p.types = append(p.types, v.(Type)) }); err != nil {
		return nil, err
	}

	if err := loadOffsetPool(sections[SectionKernels], p, origin, bundle, func(s string) any { return s },
		func(v any) { p.kernelNames = append(p.kernelNames, v.(string)) }); err != nil {
		return nil, err
	}

	if err := loadAttributes(sections[SectionAttributes], sections[SectionAttributeTypes], p, origin, opts, bundle); err != nil {
		return nil, err
	}

	if err := loadFunctionIndex(sections[SectionFunctionIndex], p, origin, bundle); err != nil {
		return nil, err
	}

	return p, nil
}

// splitNULTerminated splits a concatenated NUL-terminated byte sequence
// into an ordered list of strings, indexed by position (spec §4.C
// "LocationFilenames").
func splitNULTerminated(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var out []string
	start := 0
	for i, b := range data {
		if b == 0 {
			out = append(out, string(data[start:i]))
			start = i + 1
		}
	}
	return out
}

func loadLocationPositions(data []byte, p *pools, origin SourceLoc, bundle *diag.Bundle) error {
	if len(data) == 0 {
		return nil
	}
	r := binary.NewReader(data)
	for !r.Empty() {
		offset := uint64(r.Position())
		filenameIdx, err := r.ReadVarint()
		if err != nil {
			return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "LocationPositions: %v", err)
		}
		line, err := r.ReadVarint()
		if err != nil {
			return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "LocationPositions: %v", err)
		}
		col, err := r.ReadVarint()
		if err != nil {
			return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "LocationPositions: %v", err)
		}
		filename, ok := p.filenameAt(filenameIdx)
		if !ok {
			return diag.Fatal(diag.PhaseTable, diag.KindStringOutOfRange, origin,
				"LocationPositions: filename index %d out of range", filenameIdx)
		}
		p.locationPositions[offset] = SourceLoc{Filename: filename, Line: int(line), Column: int(col)}
	}
	return nil
}

// loadOffsetPool implements the "count then that many string-pool offsets"
// pattern shared by Types and Kernels (spec §4.C).
func loadOffsetPool(data []byte, p *pools, origin SourceLoc, bundle *diag.Bundle, parse func(string) any, append_ func(any)) error {
	if len(data) == 0 {
		return nil
	}
	r := binary.NewReader(data)
	offsets, err := r.ReadVarintArray()
	if err != nil {
		return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "%v", err)
	}
	for _, off := range offsets {
		s, ok := p.stringAt(off)
		if !ok {
			return diag.Fatal(diag.PhaseTable, diag.KindStringOutOfRange, origin,
				"offset %d not a valid string start", off)
		}
		append_(parse(s))
	}
	return nil
}

func loadFunctionIndex(data []byte, p *pools, origin SourceLoc, bundle *diag.Bundle) error {
	if len(data) == 0 {
		return nil
	}
	r := binary.NewReader(data)
	count, err := r.ReadVarint()
	if err != nil {
		return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "FunctionIndex: %v", err)
	}
	p.functionIndex = make([]functionIndexEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		kindByte, err := r.ReadU8()
		if err != nil {
			return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "FunctionIndex: %v", err)
		}
		fnOffset, err := r.ReadVarint()
		if err != nil {
			return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "FunctionIndex: %v", err)
		}
		nameOffset, err := r.ReadVarint()
		if err != nil {
			return diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "FunctionIndex: %v", err)
		}
		name, ok := p.stringAt(nameOffset)
		if !ok {
			return diag.Fatal(diag.PhaseTable, diag.KindStringOutOfRange, origin,
				"FunctionIndex[%d]: name offset %d invalid", i, nameOffset)
		}

		argTypes, err := readTypeHandleArray(r, p, origin, i, "argument")
		if err != nil {
			return err
		}
		resultTypes, err := readTypeHandleArray(r, p, origin, i, "result")
		if err != nil {
			return err
		}

		p.functionIndex = append(p.functionIndex, functionIndexEntry{
			Kind:           FunctionKind(kindByte),
			FunctionOffset: fnOffset,
			Name:           name,
			ArgTypes:       argTypes,
			ResultTypes:    resultTypes,
		})
	}
	return nil
}

func readTypeHandleArray(r *binary.Reader, p *pools, origin SourceLoc, fnIdx uint64, which string) ([]Type, error) {
	handles, err := r.ReadVarintArray()
	if err != nil {
		return nil, diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin,
			"FunctionIndex[%d]: %s types: %v", fnIdx, which, err)
	}
	types := make([]Type, len(handles))
	for i, h := range handles {
		t, ok := p.typeAt(h)
		if !ok {
			return nil, diag.Fatal(diag.PhaseTable, diag.KindTypeOutOfRange, origin,
				"FunctionIndex[%d]: %s type handle %d out of range", fnIdx, which, h)
		}
		types[i] = t
	}
	return types, nil
}
