package optimizer

import "fmt"

// Diagnostic is the structured error returned when malformed input is
// detected: it names the invariant that was violated, the function and
// instruction index responsible, and a rendering of the offending
// instruction. Optimize and LabelClean never return partial results on
// error; a Diagnostic aborts the whole call.
type Diagnostic struct {
	// Invariant names the violated precondition, e.g. "function-layout" or
	// "forward-branch".
	Invariant string
	// Function is the name of the function being processed.
	Function string
	// Arity is the function's arity, for disambiguating overloaded names.
	Arity int
	// Index is the position of the offending instruction within the
	// function body, or -1 if the violation is not tied to one
	// instruction.
	Index int
	// Instruction is a rendering of the offending instruction, or "" if
	// Index is -1.
	Instruction string
	// Detail is a short human-readable explanation.
	Detail string
}

func (d *Diagnostic) Error() string {
	if d.Index >= 0 {
		return fmt.Sprintf("bjo: %s/%d: invariant %q violated at instruction %d (%s): %s",
			d.Function, d.Arity, d.Invariant, d.Index, d.Instruction, d.Detail)
	}
	return fmt.Sprintf("bjo: %s/%d: invariant %q violated: %s", d.Function, d.Arity, d.Invariant, d.Detail)
}
