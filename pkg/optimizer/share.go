package optimizer

import "github.com/vmjump/bjo/pkg/ir"

// share is pass 1: tail sharing. It first makes every label reachable only
// via an explicit branch (inserting a jump before any label a non-
// terminating instruction would otherwise fall into), then walks the
// result from the end towards the start, merging any two tails with
// identical instruction sequences by pointing the earlier-defined label at
// the later one via a jump.
func share(oracle ir.Oracle, body []ir.Instruction) []ir.Instruction {
	prepared := insertFallthroughJumps(oracle, body)
	return shareTails(oracle, prepared)
}

// insertFallthroughJumps ensures every label is preceded by an explicit
// branch: for every adjacent pair (I, label(L)) where I does not
// terminate?() and I is not itself a label, a jump(L) is inserted between
// them.
func insertFallthroughJumps(oracle ir.Oracle, body []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, 0, len(body))
	for i, inst := range body {
		out = append(out, inst)
		if i+1 >= len(body) {
			continue
		}
		next := body[i+1]
		if next.Op == ir.OpLabel && inst.Op != ir.OpLabel && !ir.Terminates(inst, oracle) {
			out = append(out, ir.Jump(ir.LabelRef(next.Def)))
		}
	}
	return out
}

type seenTail struct {
	tail  []ir.Instruction
	label int
}

// shareTails performs the reverse walk described above. prepared must
// already have every label preceded by a terminator (insertFallthroughJumps
// guarantees this).
func shareTails(oracle ir.Oracle, prepared []ir.Instruction) []ir.Instruction {
	var out []ir.Instruction // built by prepending, always in final forward order
	var current []ir.Instruction
	var seen []seenTail

	prepend := func(unit []ir.Instruction) {
		combined := make([]ir.Instruction, 0, len(unit)+len(out))
		combined = append(combined, unit...)
		combined = append(combined, out...)
		out = combined
	}

	findSeen := func(tail []ir.Instruction) (int, bool) {
		for _, s := range seen {
			if ir.SequenceEqual(s.tail, tail) {
				return s.label, true
			}
		}
		return 0, false
	}

	for i := len(prepared) - 1; i >= 0; i-- {
		inst := prepared[i]

		if inst.Op == ir.OpFuncInfo {
			prepend([]ir.Instruction{inst})
			continue
		}

		if inst.Op == ir.OpLabel {
			if len(current) == 0 {
				prepend([]ir.Instruction{inst})
				continue
			}
			if label, ok := findSeen(current); ok {
				prepend([]ir.Instruction{inst, ir.Jump(ir.LabelRef(label))})
			} else {
				seen = append(seen, seenTail{tail: current, label: inst.Def})
				unit := make([]ir.Instruction, 0, len(current)+1)
				unit = append(unit, inst)
				unit = append(unit, current...)
				prepend(unit)
			}
			current = nil
			continue
		}

		if ir.Terminates(inst, oracle) {
			current = []ir.Instruction{inst}
		} else {
			tail := make([]ir.Instruction, 0, len(current)+1)
			tail = append(tail, inst)
			tail = append(tail, current...)
			current = tail
		}
	}

	return out
}
