package optimizer

import "github.com/vmjump/bjo/pkg/ir"

// validate checks the function layout invariant (§3): the body must begin
// [func_info, label(fc), ...], and CallerLabel must be defined somewhere in
// the body. It returns the function-class label on success, or a
// *Diagnostic describing the violation.
func validate(fn *ir.Function) (fc int, err error) {
	if len(fn.Body) < 2 {
		return 0, &Diagnostic{
			Invariant: "function-layout",
			Function:  fn.Name,
			Arity:     fn.Arity,
			Index:     -1,
			Detail:    "function body shorter than the mandatory [func_info, label(fc), ...] prefix",
		}
	}
	if fn.Body[0].Op != ir.OpFuncInfo {
		return 0, &Diagnostic{
			Invariant:   "function-layout",
			Function:    fn.Name,
			Arity:       fn.Arity,
			Index:       0,
			Instruction: fn.Body[0].String(),
			Detail:      "function body must begin with func_info",
		}
	}
	if fn.Body[1].Op != ir.OpLabel {
		return 0, &Diagnostic{
			Invariant:   "function-layout",
			Function:    fn.Name,
			Arity:       fn.Arity,
			Index:       1,
			Instruction: fn.Body[1].String(),
			Detail:      "func_info must be followed immediately by a label definition",
		}
	}

	found := false
	for _, inst := range fn.Body {
		if inst.Op == ir.OpLabel && inst.Def == fn.CallerLabel {
			found = true
			break
		}
	}
	if !found {
		return 0, &Diagnostic{
			Invariant: "function-layout",
			Function:  fn.Name,
			Arity:     fn.Arity,
			Index:     -1,
			Detail:    "caller_label is not defined anywhere in the function body",
		}
	}

	return fn.Body[1].Def, nil
}
