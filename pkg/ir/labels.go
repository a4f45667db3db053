package ir

// LabelsOf returns the function-local labels an instruction directly
// references as a branch target. Calls to other functions (call, call_ext
// and their tail variants, apply_last) are excluded, as is the sentinel
// label 0. LabelsOf never looks inside block(inner) — see IsLabelUsedIn in
// package optimizer for the query that does.
func LabelsOf(i Instruction) []int {
	var out []int
	add := func(l LabelRef) {
		if l != NoLabel {
			out = append(out, int(l))
		}
	}

	switch i.Op {
	case OpJump:
		add(i.Target)
	case OpTest:
		add(i.Fail)
	case OpSelectVal, OpSelectTupleArity:
		add(i.Fail)
		for _, c := range i.Cases {
			add(c.Target)
		}
	case OpTry, OpCatch:
		add(i.Handler)
	case OpWait:
		add(i.Target)
	case OpWaitTimeout:
		add(i.Fail)
	case OpLoopRec:
		add(i.Fail)
	case OpLoopRecEnd:
		add(i.Target)
	case OpBif, OpGCBif:
		add(i.Fail)
	case OpBSInit2, OpBSInitBits, OpBSPutInteger, OpBSPutFloat, OpBSPutBinary,
		OpBSPutUTF8, OpBSPutUTF16, OpBSPutUTF32, OpBSAdd, OpBSAppend,
		OpBSUTF8Size, OpBSUTF16Size:
		add(i.Fail)
	}
	return out
}
