package bef

import (
	"github.com/tfrt-go/bef/diag"
	"github.com/tfrt-go/bef/internal/binary"
)

// splitSections reads the magic header and then every section in the
// container, returning a dense id -> payload table. Duplicate ids are
// last-writer-wins. Unknown ids are retained under their raw id rather
// than rejected (spec §4.B, §9 "Unknown section identifiers").
func splitSections(buf []byte, origin SourceLoc, opts decodeOptions, bundle *diag.Bundle) (map[byte][]byte, error) {
	r := binary.NewReader(buf)

	b0, err := r.ReadU8()
	if err != nil {
		return nil, diag.Fatal(diag.PhaseMagic, diag.KindTruncated, origin, "reading magic: %v", err)
	}
	b1, err := r.ReadU8()
	if err != nil {
		return nil, diag.Fatal(diag.PhaseMagic, diag.KindTruncated, origin, "reading magic: %v", err)
	}
	if b0 != Magic[0] || b1 != Magic[1] {
		return nil, diag.Fatal(diag.PhaseMagic, diag.KindBadMagic, origin, "got %#02x %#02x", b0, b1)
	}

	table := make(map[byte][]byte)
	for !r.Empty() {
		sec, err := r.ReadSection()
		if err != nil {
			return nil, diag.Fatal(diag.PhaseSection, diag.KindBadSection, origin, "%v", err)
		}
		if !knownSection(sec.ID) {
			report(opts, bundle, diag.Warn(diag.PhaseSection, diag.KindBadSection, origin,
				"unknown section id %d (%d bytes) skipped", sec.ID, len(sec.Payload)))
		}
		table[sec.ID] = sec.Payload
	}

	var missing []string
	for _, id := range []byte{SectionAttributeTypes, SectionAttributeNames, SectionRegisterTypes} {
		if _, ok := table[id]; !ok {
			missing = append(missing, sectionName(id))
		}
	}
	if len(missing) > 0 {
		report(opts, bundle, diag.Warn(diag.PhaseSection, diag.KindMissingOptionalTable, origin,
			"missing optional section(s) %v, decoding will degrade gracefully", missing))
	}

	return table, nil
}
