package bef

import (
	"fmt"
	"strings"
)

// Dump renders a Module as a deterministic, human-readable text form: one
// line per function signature, followed by one indented line per
// operation in its region (native functions have no region and print no
// body). It exists for golden-file testing, not as a serialization
// format: the binary decoder never reads it back.
func (m *Module) Dump() string {
	var b strings.Builder
	for _, fn := range m.Functions {
		fmt.Fprintf(&b, "func %s(%s) -> (%s)\n", fn.Name, joinTypes(fn.ArgTypes), joinTypes(fn.ResultTypes))
		if fn.Region == nil {
			continue
		}
		for _, op := range fn.Region.Block.Operations {
			fmt.Fprintf(&b, "  %s [%d operand(s), %d result(s), %d region(s)]\n",
				op.Name, len(op.Operands), len(op.Results), len(op.Regions))
		}
	}
	return b.String()
}

func joinTypes(types []Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Raw
	}
	return strings.Join(names, ", ")
}
