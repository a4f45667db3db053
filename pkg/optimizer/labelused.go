package optimizer

import "github.com/vmjump/bjo/pkg/ir"

// IsLabelUsedIn reports whether label L is referenced anywhere in body,
// including inside block(inner) fragments — unlike the ordinary LabelsOf
// catalogue, which is deliberately blind to a block's contents. Only the
// three shapes that can legally carry a label inside a block are
// recognized: a bif with a failure label, a gc_bif with a failure label
// (conceptually wrapped in an allocation), and a catch with a handler
// label.
func IsLabelUsedIn(body []ir.Instruction, l int) bool {
	target := ir.LabelRef(l)
	for _, inst := range body {
		if labelRefersTo(inst, target) {
			return true
		}
	}
	return false
}

func labelRefersTo(inst ir.Instruction, target ir.LabelRef) bool {
	for _, l := range ir.LabelsOf(inst) {
		if ir.LabelRef(l) == target {
			return true
		}
	}
	if inst.Op == ir.OpBlock {
		for _, inner := range inst.Inner {
			if blockShapeRefersTo(inner, target) {
				return true
			}
		}
	}
	return false
}

// blockShapeRefersTo recognizes the bif/gc_bif/catch shapes that can
// legally appear inside a block and carry a label reference. Any other
// shape inside a block is opaque and carries none.
func blockShapeRefersTo(inst ir.Instruction, target ir.LabelRef) bool {
	switch inst.Op {
	case ir.OpBif, ir.OpGCBif:
		return inst.Fail == target
	case ir.OpCatch:
		return inst.Handler == target
	default:
		return false
	}
}
