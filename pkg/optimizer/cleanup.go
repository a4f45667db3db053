package optimizer

import "github.com/vmjump/bjo/pkg/ir"

// cleanup is pass 4, and also the whole of LabelClean: compute the set of
// labels actually referenced anywhere in the body (via the ordinary
// LabelsOf catalogue, which never looks inside block(inner)), seeded with
// the two caller-visible labels that are never removed regardless of
// reference count, then drop every label definition outside that set and
// every instruction unreachable after a terminator.
func cleanup(oracle ir.Oracle, entry, fc int, body []ir.Instruction) []ir.Instruction {
	used := usedLabels(body, entry, fc)

	out := make([]ir.Instruction, 0, len(body))
	afterTerminator := false
	for _, inst := range body {
		if inst.Op == ir.OpLabel {
			if used[inst.Def] {
				out = append(out, inst)
				afterTerminator = false
			}
			continue
		}
		if afterTerminator {
			continue
		}
		out = append(out, inst)
		if ir.Terminates(inst, oracle) {
			afterTerminator = true
		}
	}
	return out
}

func usedLabels(body []ir.Instruction, entry, fc int) map[int]bool {
	used := map[int]bool{entry: true, fc: true}
	for _, inst := range body {
		for _, l := range ir.LabelsOf(inst) {
			used[l] = true
		}
	}
	return used
}
