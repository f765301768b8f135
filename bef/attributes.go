package bef

import (
	"encoding/binary"
	"math"

	"github.com/tfrt-go/bef/diag"
	internalbinary "github.com/tfrt-go/bef/internal/binary"
)

// attrTypeEntry is one (offset, descriptor) pair from the AttributeTypes
// section: where an attribute starts in the Attributes payload, and what
// kind and payload its descriptor carries (spec §4.C "AttributeTypes").
type attrTypeEntry struct {
	Offset     uint64
	Kind       byte
	Payload    uint64
}

// loadAttributes decodes every attribute named by the AttributeTypes
// section, populating pools.attributes keyed by Attributes-payload offset.
// Non-container kinds (standard, bool, string, type, dense-elements) are
// decoded first since they never reference another attribute; offset-array
// attributes are resolved in a second pass once every leaf they might point
// to is already in the pool (spec §4.C "offset-array").
func loadAttributes(attrData, attrTypesData []byte, p *pools, origin SourceLoc, opts decodeOptions, bundle *diag.Bundle) error {
	if len(attrTypesData) == 0 {
		return nil
	}

	entries, err := readAttrTypeEntries(attrTypesData, origin)
	if err != nil {
		return err
	}

	var deferred []attrTypeEntry
	for _, e := range entries {
		if e.Kind == AttrKindOffsetArray {
			deferred = append(deferred, e)
			continue
		}
		a, err := decodeLeafAttribute(attrData, e, p, origin)
		if err != nil {
			if promoted, derr := demote(opts, bundle, err); derr != nil {
				return derr
			} else if promoted {
				a = &Attribute{Placeholder: true, Int: uint64(placeholderAttributeValue)}
			} else {
				continue
			}
		}
		p.attributes[e.Offset] = a
	}

	for _, e := range deferred {
		a, err := decodeOffsetArrayAttribute(attrData, e, p, origin)
		if err != nil {
			if promoted, derr := demote(opts, bundle, err); derr != nil {
				return derr
			} else if promoted {
				a = &Attribute{Placeholder: true, Int: uint64(placeholderAttributeValue)}
			} else {
				continue
			}
		}
		p.attributes[e.Offset] = a
	}

	return nil
}

// demote reports whether a recoverable decode error should become a
// warning (true, nil: caller substitutes a placeholder) or escalate to a
// hard failure (false and a non-nil error), following the active Policy
// (spec §9 "Degraded decoding").
//
// Only diag.Diagnostic values of Warning severity are eligible for
// demotion; anything else (or Strict policy) escalates.
func demote(opts decodeOptions, bundle *diag.Bundle, err error) (substitutePlaceholder bool, escalated error) {
	d, ok := err.(*diag.Diagnostic)
	if !ok {
		return false, err
	}
	if report(opts, bundle, d) {
		return true, nil
	}
	return false, d
}

func readAttrTypeEntries(data []byte, origin SourceLoc) ([]attrTypeEntry, error) {
	r := internalbinary.NewReader(data)
	count, err := r.ReadVarint()
	if err != nil {
		return nil, diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "AttributeTypes: %v", err)
	}
	entries := make([]attrTypeEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		offset, err := r.ReadVarint()
		if err != nil {
			return nil, diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "AttributeTypes[%d]: %v", i, err)
		}
		descriptor, err := r.ReadVarint()
		if err != nil {
			return nil, diag.Fatal(diag.PhaseTable, diag.KindBadSection, origin, "AttributeTypes[%d]: %v", i, err)
		}
		kind, payload := splitAttrDescriptor(descriptor)
		entries = append(entries, attrTypeEntry{Offset: offset, Kind: kind, Payload: payload})
	}
	return entries, nil
}

// readReverseLength reads a varint-encoded length backward from offset:
// the byte immediately preceding offset carries the low 7 bits, and the
// high bit marks whether another byte further back continues the value.
// This lets a string/array attribute's length live just before its data
// without a forward pointer (spec §4.C "reverse variable-byte length").
func readReverseLength(data []byte, offset uint64) (uint64, error) {
	pos := int(offset) - 1
	var result uint64
	var shift uint
	for {
		if pos < 0 {
			return 0, internalbinary.ErrTruncated
		}
		b := data[pos]
		result |= uint64(b&0x7F) << shift
		pos--
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, nil
}

func decodeLeafAttribute(data []byte, e attrTypeEntry, p *pools, origin SourceLoc) (*Attribute, error) {
	off := int(e.Offset)
	switch e.Kind {
	case AttrKindStandard:
		name, ok := typeAttrName(byte(e.Payload))
		if !ok {
			return nil, diag.Fatal(diag.PhaseTable, diag.KindUnknownType, origin,
				"attribute at %d: unknown standard type byte %d", e.Offset, e.Payload)
		}
		width, _ := standardAttrByteWidth(name)
		raw, err := sliceAt(data, off, width)
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"attribute at %d: %v", e.Offset, err)
		}
		if name == "f16" || name == "f32" || name == "f64" {
			return &Attribute{Kind: AttrStandardFloat, Float: decodeFloat(raw, name)}, nil
		}
		return &Attribute{Kind: AttrStandardInt, Int: decodeUint(raw)}, nil

	case AttrKindBool:
		raw, err := sliceAt(data, off, 1)
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"attribute at %d: %v", e.Offset, err)
		}
		return &Attribute{Kind: AttrBool, Bool: raw[0] != 0}, nil

	case AttrKindType:
		name, ok := typeAttrName(byte(e.Payload))
		if !ok {
			return nil, diag.Fatal(diag.PhaseTable, diag.KindUnknownType, origin,
				"attribute at %d: unknown type-attribute byte %d", e.Offset, e.Payload)
		}
		return &Attribute{Kind: AttrType, TypeValue: Type{Raw: name}}, nil

	case AttrKindString:
		length, err := readReverseLength(data, e.Offset)
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"attribute at %d: string length: %v", e.Offset, err)
		}
		raw, err := sliceAt(data, off, int(length))
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"attribute at %d: %v", e.Offset, err)
		}
		return &Attribute{Kind: AttrString, Str: string(raw)}, nil

	case AttrKindDenseElems:
		return decodeDenseElements(data, e, p, origin)

	case AttrKindFlatArray:
		return decodeFlatArrayAttribute(data, e, p, origin)

	default:
		return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
			"attribute at %d: unknown descriptor kind %d", e.Offset, e.Kind)
	}
}

// decodeFlatArrayAttribute decodes a flat-array attribute: its descriptor
// payload is a TypeHandle into the Types pool naming the element type, its
// length is the reverse varint just before the offset, and its elements
// are that many fixed-width values packed starting at the offset (see
// DESIGN.md "Flat-array element decoding" — elements are standard-kind
// values rather than recursively-decoded nested attributes).
func decodeFlatArrayAttribute(data []byte, e attrTypeEntry, p *pools, origin SourceLoc) (*Attribute, error) {
	elemType, ok := p.typeAt(e.Payload)
	if !ok {
		return nil, diag.Fatal(diag.PhaseTable, diag.KindTypeOutOfRange, origin,
			"flat-array attribute at %d: element type handle %d out of range", e.Offset, e.Payload)
	}
	width, ok := standardAttrByteWidth(elemType.Raw)
	if !ok {
		return nil, diag.Fatal(diag.PhaseTable, diag.KindUnknownType, origin,
			"flat-array attribute at %d: element type %q is not a standard scalar", e.Offset, elemType.Raw)
	}
	length, err := readReverseLength(data, e.Offset)
	if err != nil {
		return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
			"flat-array attribute at %d: length: %v", e.Offset, err)
	}
	elements := make([]*Attribute, 0, length)
	off := int(e.Offset)
	isFloat := elemType.Raw == "f16" || elemType.Raw == "f32" || elemType.Raw == "f64"
	for i := uint64(0); i < length; i++ {
		raw, err := sliceAt(data, off+int(i)*width, width)
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"flat-array attribute at %d: element %d: %v", e.Offset, i, err)
		}
		if isFloat {
			elements = append(elements, &Attribute{Kind: AttrStandardFloat, Float: decodeFloat(raw, elemType.Raw)})
		} else {
			elements = append(elements, &Attribute{Kind: AttrStandardInt, Int: decodeUint(raw)})
		}
	}
	return &Attribute{Kind: AttrArray, Array: elements, TypeValue: elemType}, nil
}

// decodeOffsetArrayAttribute decodes an offset-array attribute: a reverse
// varint length followed by that many fixed 4-byte offsets, each pointing
// at a previously-decoded attribute within the Attributes payload.
func decodeOffsetArrayAttribute(data []byte, e attrTypeEntry, p *pools, origin SourceLoc) (*Attribute, error) {
	length, err := readReverseLength(data, e.Offset)
	if err != nil {
		return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
			"offset-array attribute at %d: length: %v", e.Offset, err)
	}
	off := int(e.Offset)
	elements := make([]*Attribute, 0, length)
	for i := uint64(0); i < length; i++ {
		raw, err := sliceAt(data, off+int(i)*4, 4)
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"offset-array attribute at %d: element %d: %v", e.Offset, i, err)
		}
		elemOffset := uint64(binary.LittleEndian.Uint32(raw))
		elem, ok := p.attributeAt(elemOffset)
		if !ok {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"offset-array attribute at %d: element %d references unresolved offset %d", e.Offset, i, elemOffset)
		}
		elements = append(elements, elem)
	}
	return &Attribute{Kind: AttrArray, Array: elements}, nil
}

// decodeDenseElements decodes a dense-elements attribute from two leading
// 8-byte little-endian words — dtype_and_shape_rank (dtype in the high
// byte, rank in the low 56 bits) and a separate element_count — followed
// by rank many 8-byte shape dimensions and then element_count packed
// element values (spec §4.C "dense-elements"; ReadDenseElementsAttribute).
func decodeDenseElements(data []byte, e attrTypeEntry, p *pools, origin SourceLoc) (*Attribute, error) {
	off := int(e.Offset)
	header, err := sliceAt(data, off, 8)
	if err != nil {
		return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
			"dense-elements attribute at %d: header: %v", e.Offset, err)
	}
	dtypeAndRank := binary.LittleEndian.Uint64(header)
	dtypeByte := byte(dtypeAndRank >> 56)
	rank := int(dtypeAndRank & 0x00FFFFFFFFFFFFFF)
	dtypeName, ok := typeAttrName(dtypeByte)
	if !ok {
		return nil, diag.Fatal(diag.PhaseTable, diag.KindUnknownType, origin,
			"dense-elements attribute at %d: unknown element type byte %d", e.Offset, dtypeByte)
	}
	width, _ := standardAttrByteWidth(dtypeName)

	countRaw, err := sliceAt(data, off+8, 8)
	if err != nil {
		return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
			"dense-elements attribute at %d: element count: %v", e.Offset, err)
	}
	numElements := binary.LittleEndian.Uint64(countRaw)

	shapeOff := off + 16
	shape := make([]int64, rank)
	for i := 0; i < rank; i++ {
		raw, err := sliceAt(data, shapeOff+i*8, 8)
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"dense-elements attribute at %d: shape dim %d: %v", e.Offset, i, err)
		}
		shape[i] = int64(binary.LittleEndian.Uint64(raw))
	}

	dataOff := shapeOff + rank*8
	isFloat := dtypeName == "f16" || dtypeName == "f32" || dtypeName == "f64"
	elements := make([]*Attribute, 0, numElements)
	for i := uint64(0); i < numElements; i++ {
		raw, err := sliceAt(data, dataOff+int(i)*width, width)
		if err != nil {
			return nil, diag.Warn(diag.PhaseTable, diag.KindUnknownAttribute, origin,
				"dense-elements attribute at %d: element %d: %v", e.Offset, i, err)
		}
		if isFloat {
			elements = append(elements, &Attribute{Kind: AttrStandardFloat, Float: decodeFloat(raw, dtypeName)})
		} else {
			elements = append(elements, &Attribute{Kind: AttrStandardInt, Int: decodeUint(raw)})
		}
	}

	return &Attribute{
		Kind: AttrDenseElements,
		Dense: &DenseElements{
			DType:    Type{Raw: dtypeName},
			Shape:    shape,
			Elements: elements,
		},
	}, nil
}

func sliceAt(data []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(data) {
		return nil, internalbinary.ErrTruncated
	}
	return data[offset : offset+length], nil
}

func decodeUint(raw []byte) uint64 {
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(raw))
	case 4:
		return uint64(binary.LittleEndian.Uint32(raw))
	case 8:
		return binary.LittleEndian.Uint64(raw)
	default:
		return 0
	}
}

func decodeFloat(raw []byte, name string) float64 {
	switch name {
	case "f16":
		return float64(decodeFloat16(binary.LittleEndian.Uint16(raw)))
	case "f32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case "f64":
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	default:
		return 0
	}
}

// decodeFloat16 converts an IEEE 754 binary16 value to float32, since Go
// has no native half-precision type.
func decodeFloat16(bits uint16) float32 {
	sign := uint32(bits&0x8000) << 16
	exp := (bits >> 10) & 0x1F
	frac := uint32(bits & 0x3FF)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: normalize
		e := -1
		for frac&0x400 == 0 {
			frac <<= 1
			e++
		}
		frac &= 0x3FF
		exp32 := uint32(127 - 15 - e)
		return math.Float32frombits(sign | (exp32 << 23) | (frac << 13))
	case 0x1F:
		exp32 := uint32(0xFF)
		return math.Float32frombits(sign | (exp32 << 23) | (frac << 13))
	default:
		exp32 := uint32(int(exp) - 15 + 127)
		return math.Float32frombits(sign | (exp32 << 23) | (frac << 13))
	}
}
