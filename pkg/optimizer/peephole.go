package optimizer

import "github.com/vmjump/bjo/pkg/ir"

// peepholeAndPrune is pass 3: a single forward walk applying the rewrite
// rules below (first match wins), threading a state record that tracks
// which labels have been referenced so far and which labels have been
// merged into which. After the walk, labels merged into fc that were never
// physically re-emitted are appended as a function-class tail. The whole
// pass then repeats to a fixpoint: each round's output instruction
// sequence is compared against the previous round's, and the walk reruns
// until they are equal.
func peepholeAndPrune(oracle ir.Oracle, entry, fc int, body []ir.Instruction) []ir.Instruction {
	current := body
	for {
		st := newState(entry, fc)
		next := peepholeWalk(oracle, st, current)
		next = appendFunctionClassTail(st, next)
		if ir.SequenceEqual(current, next) {
			return next
		}
		current = next
	}
}

func appendFunctionClassTail(st *state, body []ir.Instruction) []ir.Instruction {
	absorbed, ok := st.relocated[st.fc]
	if !ok || len(absorbed) == 0 {
		return body
	}
	labels := st.flatten(st.fc)
	out := append([]ir.Instruction(nil), body...)
	for _, l := range labels {
		out = append(out, ir.Label(l))
	}
	return out
}

func peepholeWalk(oracle ir.Oracle, st *state, body []ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	remaining := body

	emit := func(inst ir.Instruction) {
		for _, l := range ir.LabelsOf(inst) {
			st.used[l] = true
		}
		out = append(out, inst)
	}

	for len(remaining) > 0 {
		// Rules 1 & 2: test(t, L, ops), jump(target), ... where L is
		// about to start.
		if remaining[0].Op == ir.OpTest && len(remaining) >= 2 && remaining[1].Op == ir.OpJump {
			test := remaining[0]
			jmp := remaining[1]
			rest := remaining[2:]
			if isLabelDefinedAt(rest, int(test.Fail)) {
				if test.Fail == jmp.Target {
					// Rule 1: both paths reach the same label. Drop both.
					remaining = rest
					continue
				}
				if isLabelDefinedAt(rest, int(jmp.Target)) {
					// The jump's target starts at the same position as
					// the fail label: both outcomes already land there,
					// so only the jump is redundant. Keep the test.
					emit(test)
					remaining = rest
					continue
				}
				if inv, ok := ir.InvertTest(test.TestName); ok {
					// Rule 2: invert the test and branch to jump's target
					// directly; the old fail label is about to start
					// anyway, so dropping the jump is safe.
					newTest := test
					newTest.TestName = inv
					newTest.Fail = jmp.Target
					remaining = append([]ir.Instruction{newTest}, rest...)
					continue
				}
				// No inversion exists: emit the test unchanged and
				// recurse starting at the jump.
				emit(test)
				remaining = remaining[1:]
				continue
			}
		}

		// Rule 3: label(L1), jump(L2), ... with L1 not sacred and L2 not
		// entry (entry has no mechanism to reclaim a late merge).
		if remaining[0].Op == ir.OpLabel && len(remaining) >= 2 && remaining[1].Op == ir.OpJump {
			l1 := remaining[0].Def
			l2 := int(remaining[1].Target)
			if !st.sacred(l1) && l2 != st.entry {
				st.relocated[l2] = append(st.relocated[l2], l1)
				remaining = remaining[1:] // drop label(L1); jump(L2) processed next
				continue
			}
		}

		// Rule 4: label(L) whose relocated set is non-empty: atomically
		// emit L and everything absorbed into it.
		if remaining[0].Op == ir.OpLabel && remaining[0].Def != st.entry {
			l := remaining[0].Def
			if absorbed, ok := st.relocated[l]; ok && len(absorbed) > 0 {
				for _, ln := range st.flatten(l) {
					emit(ir.Label(ln))
				}
				remaining = remaining[1:]
				continue
			}
		}

		// Rule 5: jump(L), label(L), ...: the jump is redundant.
		if remaining[0].Op == ir.OpJump && len(remaining) >= 2 && remaining[1].Op == ir.OpLabel &&
			int(remaining[0].Target) == remaining[1].Def {
			remaining = remaining[1:]
			continue
		}

		// Rule 6: any other jump.
		if remaining[0].Op == ir.OpJump {
			emit(remaining[0])
			remaining = remaining[1:]
			remaining = unreachableSkip(st, remaining)
			continue
		}

		// Rule 7: label(L) with L == entry is handled by falling through
		// to rule 8 (plain emission): it is never sacred-absorbed because
		// rule 3/4 above already exclude it.

		// Rule 8: default — emit and mark labels used; if the
		// instruction terminates, the rest of the block until the next
		// used label is unreachable.
		inst := remaining[0]
		emit(inst)
		remaining = remaining[1:]
		if ir.Terminates(inst, oracle) {
			remaining = unreachableSkip(st, remaining)
		}
	}

	return out
}

// isLabelDefinedAt reports whether label L is defined at the very start of
// rest, skipping over any number of other label definitions first and
// stopping as soon as a non-label instruction is seen.
func isLabelDefinedAt(rest []ir.Instruction, l int) bool {
	for _, inst := range rest {
		if inst.Op != ir.OpLabel {
			return false
		}
		if inst.Def == l {
			return true
		}
	}
	return false
}

// unreachableSkip drops instructions until the next label already known to
// be used, or the end of input.
func unreachableSkip(st *state, remaining []ir.Instruction) []ir.Instruction {
	for len(remaining) > 0 {
		if remaining[0].Op == ir.OpLabel && st.used[remaining[0].Def] {
			return remaining
		}
		remaining = remaining[1:]
	}
	return remaining
}
