package ir

// Oracle answers whether calling an external function is known to always
// raise (never return normally). It is consulted only for call_ext,
// call_ext_last and call_ext_only instructions; the optimizer does not
// reason about a function's body, only about what this collaborator
// reports. Concrete implementations live in package oracle.
type Oracle interface {
	AlwaysRaises(MFA) bool
}

// NopOracle never reports a callee as always-raising. It is the oracle
// used when the caller supplies none, reducing the Exits classifier to the
// four hard-coded exit instructions.
type NopOracle struct{}

func (NopOracle) AlwaysRaises(MFA) bool { return false }

// Terminates reports whether an instruction never falls through to its
// successor: an unconditional branch, a tail call, a return, a multi-way
// select, a receive-wait, or a guaranteed-exit call.
func Terminates(i Instruction, oracle Oracle) bool {
	switch i.Op {
	case OpFuncInfo:
		// Falls through only to an error handler unreachable from normal
		// control flow.
		return true
	case OpJump, OpCallLast, OpCallOnly, OpCallExtLast, OpCallExtOnly,
		OpApplyLast, OpReturn, OpSelectVal, OpSelectTupleArity,
		OpWait, OpWaitTimeout, OpLoopRecEnd,
		OpCaseEnd, OpIfEnd, OpTryCaseEnd, OpBadmatch:
		return true
	case OpCallExt, OpCall:
		if oracle != nil && i.Op == OpCallExt && oracle.AlwaysRaises(i.MFA) {
			return true
		}
		return false
	default:
		return false
	}
}

// Exits reports whether an instruction is guaranteed to raise an exception
// (a subset of Terminates): the four exit instructions, and any external
// call the oracle reports as always-raising.
func Exits(i Instruction, oracle Oracle) bool {
	switch i.Op {
	case OpCaseEnd, OpIfEnd, OpTryCaseEnd, OpBadmatch:
		return true
	case OpCallExt, OpCallExtLast, OpCallExtOnly:
		return oracle != nil && oracle.AlwaysRaises(i.MFA)
	default:
		return false
	}
}

// invertible maps a test name to the test that holds exactly when it does
// not: swapping the fail branch for the success branch lets the peephole
// pass eliminate a redundant jump by inverting the condition instead.
var invertible = map[string]string{
	"is_ge":       "is_lt",
	"is_lt":       "is_ge",
	"is_eq":       "is_ne",
	"is_ne":       "is_eq",
	"is_eq_exact": "is_ne_exact",
	"is_ne_exact": "is_eq_exact",
}

// InvertTest returns the logical inverse of a test name and true, or ""
// and false if the test has no defined inverse.
func InvertTest(name string) (string, bool) {
	inv, ok := invertible[name]
	return inv, ok
}
