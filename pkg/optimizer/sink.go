package optimizer

import "github.com/vmjump/bjo/pkg/ir"

// sink is pass 2: exit sinking. It walks the function once, accumulating
// processed instructions into acc (most recent first). When it meets an
// instruction that Exits, it inspects the shape of acc immediately behind
// it and, where that shape shows the exit is reachable only via a single
// preceding label that itself has nothing else depending on its position,
// relocates the exit and its label (with the block or bs_context_to_binary
// between them, if there is one) to the very end of the function and
// re-examines whatever was exposed behind it.
//
// Applied after pass 1, so every label is already preceded by a terminator.
func sink(oracle ir.Oracle, body []ir.Instruction) []ir.Instruction {
	pending := append([]ir.Instruction(nil), body...)
	var acc []ir.Instruction // most recent first
	var end []ir.Instruction // most recent first

	popFront := func() ir.Instruction {
		inst := pending[0]
		pending = pending[1:]
		return inst
	}
	pushFront := func(inst ir.Instruction) {
		next := make([]ir.Instruction, 0, len(pending)+1)
		next = append(next, inst)
		next = append(next, pending...)
		pending = next
	}
	pushAcc := func(inst ir.Instruction) {
		next := make([]ir.Instruction, 0, len(acc)+1)
		next = append(next, inst)
		next = append(next, acc...)
		acc = next
	}
	pushEnd := func(units ...ir.Instruction) {
		next := make([]ir.Instruction, 0, len(units)+len(end))
		next = append(next, units...)
		next = append(next, end...)
		end = next
	}

	for len(pending) > 0 {
		inst := popFront()
		if !ir.Exits(inst, oracle) {
			pushAcc(inst)
			continue
		}

		switch {
		case len(acc) >= 3 && acc[0].Op == ir.OpBlock && acc[1].Op == ir.OpLabel && acc[2].Op == ir.OpFuncInfo:
			// At the very top of the function: leave the exit in place.
			pushAcc(inst)

		case len(acc) >= 3 && acc[0].Op == ir.OpBlock && acc[1].Op == ir.OpLabel:
			unreachable := acc[2]
			pushEnd(inst, acc[0], acc[1])
			acc = acc[3:]
			pushFront(unreachable)

		case len(acc) >= 3 && acc[0].Op == ir.OpBSContextToBinary && acc[1].Op == ir.OpLabel:
			unreachable := acc[2]
			pushEnd(inst, acc[0], acc[1])
			acc = acc[3:]
			pushFront(unreachable)

		case len(acc) >= 2 && acc[0].Op == ir.OpLabel && acc[1].Op != ir.OpFuncInfo:
			unreachable := acc[1]
			pushEnd(inst, acc[0])
			acc = acc[2:]
			pushFront(unreachable)

		default:
			pushAcc(inst)
		}
	}

	result := make([]ir.Instruction, 0, len(acc)+len(end))
	result = append(result, reverse(acc)...)
	result = append(result, reverse(end)...)
	return result
}

func reverse(in []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, len(in))
	for i, inst := range in {
		out[len(in)-1-i] = inst
	}
	return out
}
