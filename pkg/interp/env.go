package interp

import "github.com/vmjump/bjo/pkg/ir"

// MapEnvironment is a fixed-answer Environment, useful for tests: every
// test name maps to a bool, and every register that a select_val/
// select_tuple_arity inspects maps to the concrete value it holds. Any
// test or register not present in the maps fails (branches to Fail).
type MapEnvironment struct {
	Tests  map[string]bool
	Values map[ir.Operand]ir.Operand
}

func (e MapEnvironment) EvalTest(name string, _ []ir.Operand) bool {
	return e.Tests[name]
}

func (e MapEnvironment) EvalSelect(reg ir.Operand, cases []ir.Case) (ir.LabelRef, bool) {
	value, ok := e.Values[reg]
	if !ok {
		return ir.NoLabel, false
	}
	for _, c := range cases {
		if c.Value == value {
			return c.Target, true
		}
	}
	return ir.NoLabel, false
}
