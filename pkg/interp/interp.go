// Package interp implements a small reference interpreter for a function's
// instruction list: not a faithful emulator of any particular machine, but
// enough of a control-flow walker to record an observable trace (external
// calls made, in order; whether the function returned or raised) so that
// optimizer tests can assert a transformed function behaves the same as
// its input for a given environment.
package interp

import (
	"fmt"
	"io"
	"os"

	"github.com/vmjump/bjo/pkg/ir"
)

// Config controls step limits and tracing, mirroring the teacher's own VM
// configuration shape.
type Config struct {
	MaxSteps int
	Debug    bool
	Trace    bool
	Out      io.Writer
}

func (c Config) maxSteps() int {
	if c.MaxSteps > 0 {
		return c.MaxSteps
	}
	return 10000
}

func (c Config) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stderr
}

// Environment supplies the runtime answers the interpreter cannot derive
// from the instruction stream alone: which way a test branches, and which
// case a select matches. A deterministic Environment turns a function into
// a deterministic trace.
type Environment interface {
	// EvalTest reports whether the named test succeeds (falls through) for
	// the given operands. False means branch to the instruction's Fail
	// label.
	EvalTest(name string, operands []ir.Operand) bool
	// EvalSelect returns the case matched by reg's runtime value, if any.
	EvalSelect(reg ir.Operand, cases []ir.Case) (target ir.LabelRef, matched bool)
}

// Trace is the observable record of one run: the sequence of external
// calls made and how the function ultimately left, either by returning or
// by raising.
type Trace struct {
	Calls    []ir.MFA
	Returned bool
	Raised   bool
	RaiseOp  ir.Op
	Steps    int
}

// VM walks a function's instruction list under a given Environment and
// Oracle, producing a Trace.
type VM struct {
	cfg    Config
	oracle ir.Oracle
}

// New creates an interpreter. A nil oracle behaves like ir.NopOracle.
func New(cfg Config, oracle ir.Oracle) *VM {
	if oracle == nil {
		oracle = ir.NopOracle{}
	}
	return &VM{cfg: cfg, oracle: oracle}
}

// Run executes fn starting at its caller-visible entry label (the
// instruction immediately following that label's definition) and returns
// the resulting Trace, or an error if the step limit was exceeded or the
// entry label could not be found.
func (vm *VM) Run(fn *ir.Function, env Environment) (*Trace, error) {
	// index maps each label to the instruction right after its definition:
	// entry and every branch resume there, not on the label itself.
	index := make(map[int]int, len(fn.Body))
	for i, inst := range fn.Body {
		if inst.Op == ir.OpLabel {
			index[inst.Def] = i + 1
		}
	}

	start, ok := index[fn.CallerLabel]
	if !ok {
		return nil, fmt.Errorf("interp: caller label %d not defined in %s/%d", fn.CallerLabel, fn.Name, fn.Arity)
	}

	tr := &Trace{}
	pc := start

	for tr.Steps < vm.cfg.maxSteps() {
		if pc < 0 || pc >= len(fn.Body) {
			return nil, fmt.Errorf("interp: pc %d out of range in %s/%d", pc, fn.Name, fn.Arity)
		}
		inst := fn.Body[pc]
		if vm.cfg.Debug {
			fmt.Fprintf(vm.cfg.out(), "[interp] %s/%d pc=%d %s\n", fn.Name, fn.Arity, pc, inst)
		}
		tr.Steps++

		switch inst.Op {
		case ir.OpLabel, ir.OpFuncInfo, ir.OpKill, ir.OpDeallocate, ir.OpBlock,
			ir.OpBSContextToBinary, ir.OpBSInit2, ir.OpBSInitBits, ir.OpBSPutInteger,
			ir.OpBSPutFloat, ir.OpBSPutBinary, ir.OpBSPutUTF8, ir.OpBSPutUTF16,
			ir.OpBSPutUTF32, ir.OpBSAdd, ir.OpBSAppend, ir.OpBSUTF8Size,
			ir.OpBSUTF16Size, ir.OpOpaque, ir.OpTry, ir.OpCatch, ir.OpBif, ir.OpGCBif:
			pc++

		case ir.OpJump:
			next, ok := index[int(inst.Target)]
			if !ok {
				return nil, fmt.Errorf("interp: jump to undefined label %s", inst.Target)
			}
			pc = next

		case ir.OpTest:
			if vm.evalTest(env, inst) {
				pc++
				continue
			}
			next, ok := index[int(inst.Fail)]
			if !ok {
				return nil, fmt.Errorf("interp: test fail label %s undefined", inst.Fail)
			}
			pc = next

		case ir.OpSelectVal, ir.OpSelectTupleArity:
			target, matched := env.EvalSelect(inst.Reg, inst.Cases)
			if !matched {
				target = inst.Fail
			}
			next, ok := index[int(target)]
			if !ok {
				return nil, fmt.Errorf("interp: select target %s undefined", target)
			}
			pc = next

		case ir.OpCall:
			next, ok := index[int(inst.Target)]
			if !ok {
				return nil, fmt.Errorf("interp: call target %s undefined", inst.Target)
			}
			pc = next

		case ir.OpCallLast, ir.OpCallOnly:
			tr.Returned = true
			return tr, nil

		case ir.OpCallExt:
			tr.Calls = append(tr.Calls, inst.MFA)
			if vm.oracle.AlwaysRaises(inst.MFA) {
				tr.Raised = true
				tr.RaiseOp = inst.Op
				return tr, nil
			}
			pc++

		case ir.OpCallExtLast, ir.OpCallExtOnly:
			tr.Calls = append(tr.Calls, inst.MFA)
			if vm.oracle.AlwaysRaises(inst.MFA) {
				tr.Raised = true
				tr.RaiseOp = inst.Op
				return tr, nil
			}
			tr.Returned = true
			return tr, nil

		case ir.OpApplyLast:
			tr.Returned = true
			return tr, nil

		case ir.OpReturn:
			tr.Returned = true
			return tr, nil

		case ir.OpWait:
			next, ok := index[int(inst.Target)]
			if !ok {
				return nil, fmt.Errorf("interp: wait target %s undefined", inst.Target)
			}
			pc = next

		case ir.OpWaitTimeout:
			next, ok := index[int(inst.Fail)]
			if !ok {
				return nil, fmt.Errorf("interp: wait_timeout fail label %s undefined", inst.Fail)
			}
			pc = next

		case ir.OpLoopRec:
			next, ok := index[int(inst.Fail)]
			if !ok {
				return nil, fmt.Errorf("interp: loop_rec fail label %s undefined", inst.Fail)
			}
			pc = next

		case ir.OpLoopRecEnd:
			next, ok := index[int(inst.Target)]
			if !ok {
				return nil, fmt.Errorf("interp: loop_rec_end target %s undefined", inst.Target)
			}
			pc = next

		case ir.OpCaseEnd, ir.OpIfEnd, ir.OpTryCaseEnd, ir.OpBadmatch:
			tr.Raised = true
			tr.RaiseOp = inst.Op
			return tr, nil

		default:
			return nil, fmt.Errorf("interp: unhandled instruction %s", inst)
		}
	}

	return nil, fmt.Errorf("interp: step limit exceeded (%d) in %s/%d", vm.cfg.maxSteps(), fn.Name, fn.Arity)
}

func (vm *VM) evalTest(env Environment, inst ir.Instruction) bool {
	return env.EvalTest(inst.TestName, inst.Operands)
}
