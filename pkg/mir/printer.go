// Package mir implements the textual listing format for a module: a
// human-readable, round-trippable rendering of the tagged instruction
// stream pkg/ir models in memory. It exists so fixtures for the optimizer's
// end-to-end scenarios can be written and diffed as text, the way the
// teacher's own MIR format serves its optimizer tests.
package mir

import (
	"fmt"
	"io"
	"strings"

	"github.com/vmjump/bjo/pkg/ir"
)

// Print writes m to w in the textual listing format.
func Print(w io.Writer, m *ir.Module) error {
	var err error
	emit := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, args...)
	}

	emit("module %s.\n\n", m.Name)
	for _, exp := range m.Exports {
		emit("export %s/%d.\n", exp.Function, exp.Arity)
	}
	if len(m.Exports) > 0 {
		emit("\n")
	}
	for _, attr := range m.Attributes {
		emit("attribute %s %s.\n", attr.Key, attr.Value)
	}
	if len(m.Attributes) > 0 {
		emit("\n")
	}
	emit("literals %d.\n\n", m.LiteralCount)

	for _, fn := range m.Functions {
		emit("function %s/%d caller L%d\n", fn.Name, fn.Arity, fn.CallerLabel)
		for i, inst := range fn.Body {
			emit("  %d: %s\n", i, inst.String())
		}
		emit("end\n\n")
	}
	return err
}

// Sprint renders m in the textual listing format as a string.
func Sprint(m *ir.Module) string {
	var sb strings.Builder
	// Print never fails against a strings.Builder.
	_ = Print(&sb, m)
	return sb.String()
}
