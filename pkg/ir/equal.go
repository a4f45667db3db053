package ir

// Equal reports whether two instructions have identical shape and operand
// content. It underlies the tail-shape comparison pass 1 (Share) uses to
// find duplicate tails, and the idempotence checks in the optimizer's test
// suite.
func (i Instruction) Equal(o Instruction) bool {
	if i.Op != o.Op {
		return false
	}
	switch i.Op {
	case OpFuncInfo:
		return i.MFA == o.MFA
	case OpLabel:
		return i.Def == o.Def
	case OpJump:
		return i.Target == o.Target
	case OpTest:
		return i.TestName == o.TestName && i.Fail == o.Fail && i.HasDst == o.HasDst &&
			i.Dst == o.Dst && operandsEqual(i.Operands, o.Operands) && operandsEqual(i.Live, o.Live)
	case OpSelectVal, OpSelectTupleArity:
		return i.Reg == o.Reg && i.Fail == o.Fail && casesEqual(i.Cases, o.Cases)
	case OpCall, OpCallLast, OpCallOnly:
		return i.Arity == o.Arity && i.Target == o.Target
	case OpCallExt, OpCallExtLast, OpCallExtOnly:
		return i.MFA == o.MFA
	case OpApplyLast:
		return i.Arity == o.Arity
	case OpReturn, OpIfEnd:
		return true
	case OpWait:
		return i.Target == o.Target
	case OpWaitTimeout:
		return i.Fail == o.Fail && operandsEqual(i.Operands, o.Operands)
	case OpLoopRec:
		return i.Fail == o.Fail && i.Dst == o.Dst
	case OpLoopRecEnd:
		return i.Target == o.Target
	case OpTry, OpCatch:
		return i.Dst == o.Dst && i.Handler == o.Handler
	case OpKill, OpCaseEnd, OpTryCaseEnd, OpBadmatch, OpBSContextToBinary:
		return i.Dst == o.Dst
	case OpDeallocate:
		return i.Arity == o.Arity
	case OpBlock:
		if len(i.Inner) != len(o.Inner) {
			return false
		}
		for n := range i.Inner {
			if !i.Inner[n].Equal(o.Inner[n]) {
				return false
			}
		}
		return true
	case OpBSInit2, OpBSInitBits, OpBSPutInteger, OpBSPutFloat, OpBSPutBinary,
		OpBSPutUTF8, OpBSPutUTF16, OpBSPutUTF32, OpBSAdd, OpBSAppend,
		OpBSUTF8Size, OpBSUTF16Size:
		return i.Fail == o.Fail && operandsEqual(i.Args, o.Args)
	case OpBif, OpGCBif:
		return i.Mnemonic == o.Mnemonic && i.Fail == o.Fail && i.Dst == o.Dst && operandsEqual(i.Args, o.Args)
	case OpOpaque:
		return i.Mnemonic == o.Mnemonic && operandsEqual(i.Args, o.Args)
	default:
		return false
	}
}

func operandsEqual(a, b []Operand) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func casesEqual(a, b []Case) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SequenceEqual reports whether two instruction sequences are pairwise
// Equal, in order.
func SequenceEqual(a, b []Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
