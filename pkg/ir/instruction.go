// Package ir defines the tagged instruction shapes that flow through the
// jump and unreachable-code optimizer, plus the pure classifiers the passes
// dispatch on.
package ir

import (
	"fmt"
	"strings"
)

// Op identifies the shape of an Instruction. Each value corresponds to one
// of the tagged variants of the source language: a label definition, a
// branch, a call, a structural marker, or an opaque straight-line op the
// optimizer never looks inside.
type Op int

const (
	OpFuncInfo Op = iota
	OpLabel
	OpJump
	OpTest
	OpSelectVal
	OpSelectTupleArity
	OpCall
	OpCallLast
	OpCallOnly
	OpCallExt
	OpCallExtLast
	OpCallExtOnly
	OpApplyLast
	OpReturn
	OpWait
	OpWaitTimeout
	OpLoopRec
	OpLoopRecEnd
	OpTry
	OpCatch
	OpKill
	OpDeallocate
	OpBlock
	OpBSContextToBinary
	OpBSInit2
	OpBSInitBits
	OpBSPutInteger
	OpBSPutFloat
	OpBSPutBinary
	OpBSPutUTF8
	OpBSPutUTF16
	OpBSPutUTF32
	OpBSAdd
	OpBSAppend
	OpBSUTF8Size
	OpBSUTF16Size
	OpCaseEnd
	OpIfEnd
	OpTryCaseEnd
	OpBadmatch
	OpBif
	OpGCBif
	// OpOpaque covers every straight-line instruction the optimizer treats
	// as an uninterpreted unit of work: moves, allocations, arithmetic,
	// stack bookkeeping that carries no label and never terminates.
	OpOpaque
)

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(o))
}

var opNames = map[Op]string{
	OpFuncInfo:          "func_info",
	OpLabel:              "label",
	OpJump:                "jump",
	OpTest:                "test",
	OpSelectVal:           "select_val",
	OpSelectTupleArity:    "select_tuple_arity",
	OpCall:                "call",
	OpCallLast:            "call_last",
	OpCallOnly:            "call_only",
	OpCallExt:             "call_ext",
	OpCallExtLast:         "call_ext_last",
	OpCallExtOnly:         "call_ext_only",
	OpApplyLast:           "apply_last",
	OpReturn:              "return",
	OpWait:                "wait",
	OpWaitTimeout:         "wait_timeout",
	OpLoopRec:             "loop_rec",
	OpLoopRecEnd:          "loop_rec_end",
	OpTry:                 "try",
	OpCatch:               "catch",
	OpKill:                "kill",
	OpDeallocate:          "deallocate",
	OpBlock:               "block",
	OpBSContextToBinary:   "bs_context_to_binary",
	OpBSInit2:             "bs_init2",
	OpBSInitBits:          "bs_init_bits",
	OpBSPutInteger:        "bs_put_integer",
	OpBSPutFloat:          "bs_put_float",
	OpBSPutBinary:         "bs_put_binary",
	OpBSPutUTF8:           "bs_put_utf8",
	OpBSPutUTF16:          "bs_put_utf16",
	OpBSPutUTF32:          "bs_put_utf32",
	OpBSAdd:               "bs_add",
	OpBSAppend:            "bs_append",
	OpBSUTF8Size:          "bs_utf8_size",
	OpBSUTF16Size:         "bs_utf16_size",
	OpCaseEnd:             "case_end",
	OpIfEnd:               "if_end",
	OpTryCaseEnd:          "try_case_end",
	OpBadmatch:            "badmatch",
	OpBif:                 "bif",
	OpGCBif:               "gc_bif",
	OpOpaque:              "opaque",
}

// LabelRef is a reference to a function-local label. The zero value, 0, is
// the sentinel meaning "no label" (e.g. a bif with no failure label).
type LabelRef int

// NoLabel is the sentinel label reference meaning "absent".
const NoLabel LabelRef = 0

func (l LabelRef) String() string {
	if l == NoLabel {
		return "-"
	}
	return fmt.Sprintf("L%d", int(l))
}

// OperandKind distinguishes the small set of operand shapes instructions
// carry: registers, literals and the absence of an operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRegX
	OperandRegY
	OperandRegFR
	OperandAtom
	OperandInteger
	OperandNil
)

// Operand is a value read or written by an instruction: a stack/register
// slot, a literal atom or integer, or nil. It is comparable with ==.
type Operand struct {
	Kind  OperandKind
	Index int
	Atom  string
	Int   int64
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandRegX:
		return fmt.Sprintf("x%d", o.Index)
	case OperandRegY:
		return fmt.Sprintf("y%d", o.Index)
	case OperandRegFR:
		return fmt.Sprintf("fr%d", o.Index)
	case OperandAtom:
		return o.Atom
	case OperandInteger:
		return fmt.Sprintf("%d", o.Int)
	case OperandNil:
		return "nil"
	default:
		return "none"
	}
}

func RegX(i int) Operand { return Operand{Kind: OperandRegX, Index: i} }
func RegY(i int) Operand { return Operand{Kind: OperandRegY, Index: i} }
func RegFR(i int) Operand { return Operand{Kind: OperandRegFR, Index: i} }
func Atom(name string) Operand { return Operand{Kind: OperandAtom, Atom: name} }
func Integer(v int64) Operand { return Operand{Kind: OperandInteger, Int: v} }
func Nil() Operand { return Operand{Kind: OperandNil} }

// MFA names an external function: module, function, arity.
type MFA struct {
	Module   string
	Function string
	Arity    int
}

func (m MFA) String() string {
	return fmt.Sprintf("%s:%s/%d", m.Module, m.Function, m.Arity)
}

// Case is one arm of a select_val or select_tuple_arity: a literal to match
// against and the label to jump to when it matches.
type Case struct {
	Value  Operand
	Target LabelRef
}

// Instruction is a single tagged-variant bytecode instruction. Only the
// fields relevant to Op are meaningful; it is deliberately a flat struct
// (rather than an interface hierarchy) so the passes can pattern-match on Op
// with an ordinary switch, the way the source instruction stream itself is
// a flat tagged-tuple sequence.
type Instruction struct {
	Op Op

	// Def holds the label number for OpLabel.
	Def int

	// Target is the unconditional branch target for OpJump, the loop-back
	// target for OpLoopRecEnd, and the resume label for OpWait.
	Target LabelRef

	// Fail is the label to branch to when a conditional/constructive
	// instruction does not succeed: OpTest, OpSelectVal (default),
	// OpSelectTupleArity (default), OpLoopRec, OpWaitTimeout, OpBif,
	// OpGCBif, and the bs_* construction instructions.
	Fail LabelRef

	// Handler is the catch/try handler label for OpTry and OpCatch.
	Handler LabelRef

	// TestName names the condition for OpTest, e.g. "is_ge", "is_eq_exact".
	TestName string
	Operands []Operand
	Live     []Operand
	Dst      Operand
	HasDst   bool

	// Reg and Cases describe OpSelectVal / OpSelectTupleArity.
	Reg   Operand
	Cases []Case

	// MFA, Arity describe call instructions. For OpCall/OpCallLast/
	// OpCallOnly, MFA.Module/Function are empty and only Arity and Target
	// (the callee's entry label) are meaningful. For the call_ext family
	// and OpFuncInfo, MFA is fully populated.
	MFA   MFA
	Arity int

	// Inner holds the opaque nested instructions of OpBlock. The ordinary
	// label catalogue never looks inside Inner; only IsLabelUsedIn does.
	Inner []Instruction

	// Mnemonic and Args describe OpOpaque instructions: arithmetic, moves,
	// stack management, anything the optimizer passes through unexamined.
	Mnemonic string
	Args     []Operand
}

// Label constructs a label definition.
func Label(n int) Instruction { return Instruction{Op: OpLabel, Def: n} }

// FuncInfo constructs the function-info header instruction.
func FuncInfo(mfa MFA) Instruction { return Instruction{Op: OpFuncInfo, MFA: mfa} }

// Jump constructs an unconditional branch.
func Jump(target LabelRef) Instruction { return Instruction{Op: OpJump, Target: target} }

// Test constructs a conditional branch with no destination register.
func Test(name string, fail LabelRef, operands ...Operand) Instruction {
	return Instruction{Op: OpTest, TestName: name, Fail: fail, Operands: operands}
}

// TestWithDst constructs the five-tuple test(Name, Fail, Live, Operands, Dst)
// variant, used by tests that also produce a value on success.
func TestWithDst(name string, fail LabelRef, live []Operand, operands []Operand, dst Operand) Instruction {
	return Instruction{Op: OpTest, TestName: name, Fail: fail, Live: live, Operands: operands, Dst: dst, HasDst: true}
}

// SelectVal constructs a multi-way value select.
func SelectVal(reg Operand, fail LabelRef, cases ...Case) Instruction {
	return Instruction{Op: OpSelectVal, Reg: reg, Fail: fail, Cases: cases}
}

// SelectTupleArity constructs a multi-way tuple-arity select.
func SelectTupleArity(reg Operand, fail LabelRef, cases ...Case) Instruction {
	return Instruction{Op: OpSelectTupleArity, Reg: reg, Fail: fail, Cases: cases}
}

func Call(arity int, target LabelRef) Instruction {
	return Instruction{Op: OpCall, Arity: arity, Target: target}
}
func CallLast(arity int, target LabelRef) Instruction {
	return Instruction{Op: OpCallLast, Arity: arity, Target: target}
}
func CallOnly(arity int, target LabelRef) Instruction {
	return Instruction{Op: OpCallOnly, Arity: arity, Target: target}
}
func CallExt(mfa MFA) Instruction  { return Instruction{Op: OpCallExt, MFA: mfa, Arity: mfa.Arity} }
func CallExtLast(mfa MFA) Instruction {
	return Instruction{Op: OpCallExtLast, MFA: mfa, Arity: mfa.Arity}
}
func CallExtOnly(mfa MFA) Instruction {
	return Instruction{Op: OpCallExtOnly, MFA: mfa, Arity: mfa.Arity}
}
func ApplyLast(arity int) Instruction { return Instruction{Op: OpApplyLast, Arity: arity} }
func Return() Instruction             { return Instruction{Op: OpReturn} }

func Wait(target LabelRef) Instruction { return Instruction{Op: OpWait, Target: target} }
func WaitTimeout(timeout Operand, fail LabelRef) Instruction {
	return Instruction{Op: OpWaitTimeout, Fail: fail, Operands: []Operand{timeout}}
}
func LoopRec(fail LabelRef, dst Operand) Instruction {
	return Instruction{Op: OpLoopRec, Fail: fail, Dst: dst, HasDst: true}
}
func LoopRecEnd(target LabelRef) Instruction { return Instruction{Op: OpLoopRecEnd, Target: target} }

func Try(reg Operand, handler LabelRef) Instruction {
	return Instruction{Op: OpTry, Dst: reg, HasDst: true, Handler: handler}
}
func Catch(reg Operand, handler LabelRef) Instruction {
	return Instruction{Op: OpCatch, Dst: reg, HasDst: true, Handler: handler}
}
func Kill(reg Operand) Instruction        { return Instruction{Op: OpKill, Dst: reg, HasDst: true} }
func Deallocate(n int) Instruction        { return Instruction{Op: OpDeallocate, Arity: n} }
func Block(inner ...Instruction) Instruction { return Instruction{Op: OpBlock, Inner: inner} }

func BSContextToBinary(reg Operand) Instruction {
	return Instruction{Op: OpBSContextToBinary, Dst: reg, HasDst: true}
}

func bsConstruct(op Op, fail LabelRef, args ...Operand) Instruction {
	return Instruction{Op: op, Fail: fail, Args: args}
}

func BSInit2(fail LabelRef, args ...Operand) Instruction      { return bsConstruct(OpBSInit2, fail, args...) }
func BSInitBits(fail LabelRef, args ...Operand) Instruction   { return bsConstruct(OpBSInitBits, fail, args...) }
func BSPutInteger(fail LabelRef, args ...Operand) Instruction { return bsConstruct(OpBSPutInteger, fail, args...) }
func BSPutFloat(fail LabelRef, args ...Operand) Instruction   { return bsConstruct(OpBSPutFloat, fail, args...) }
func BSPutBinary(fail LabelRef, args ...Operand) Instruction  { return bsConstruct(OpBSPutBinary, fail, args...) }
func BSPutUTF8(fail LabelRef, args ...Operand) Instruction    { return bsConstruct(OpBSPutUTF8, fail, args...) }
func BSPutUTF16(fail LabelRef, args ...Operand) Instruction   { return bsConstruct(OpBSPutUTF16, fail, args...) }
func BSPutUTF32(fail LabelRef, args ...Operand) Instruction   { return bsConstruct(OpBSPutUTF32, fail, args...) }
func BSAdd(fail LabelRef, args ...Operand) Instruction        { return bsConstruct(OpBSAdd, fail, args...) }
func BSAppend(fail LabelRef, args ...Operand) Instruction     { return bsConstruct(OpBSAppend, fail, args...) }
func BSUTF8Size(fail LabelRef, args ...Operand) Instruction   { return bsConstruct(OpBSUTF8Size, fail, args...) }
func BSUTF16Size(fail LabelRef, args ...Operand) Instruction  { return bsConstruct(OpBSUTF16Size, fail, args...) }

func CaseEnd(reg Operand) Instruction    { return Instruction{Op: OpCaseEnd, Dst: reg, HasDst: true} }
func IfEnd() Instruction                 { return Instruction{Op: OpIfEnd} }
func TryCaseEnd(reg Operand) Instruction { return Instruction{Op: OpTryCaseEnd, Dst: reg, HasDst: true} }
func Badmatch(reg Operand) Instruction   { return Instruction{Op: OpBadmatch, Dst: reg, HasDst: true} }

func Bif(name string, fail LabelRef, args []Operand, dst Operand) Instruction {
	return Instruction{Op: OpBif, Mnemonic: name, Fail: fail, Args: args, Dst: dst, HasDst: true}
}
func GCBif(name string, fail LabelRef, args []Operand, dst Operand) Instruction {
	return Instruction{Op: OpGCBif, Mnemonic: name, Fail: fail, Args: args, Dst: dst, HasDst: true}
}

// Opaque constructs a straight-line instruction the optimizer never
// inspects beyond classification (it carries no label and never
// terminates): moves, arithmetic, allocation and the like.
func Opaque(mnemonic string, args ...Operand) Instruction {
	return Instruction{Op: OpOpaque, Mnemonic: mnemonic, Args: args}
}

// String renders an instruction in the textual listing syntax used by
// pkg/mir and by debug tracing.
func (i Instruction) String() string {
	switch i.Op {
	case OpFuncInfo:
		return fmt.Sprintf("func_info(%s)", i.MFA)
	case OpLabel:
		return fmt.Sprintf("label(%d)", i.Def)
	case OpJump:
		return fmt.Sprintf("jump(%s)", i.Target)
	case OpTest:
		ops := joinOperands(i.Operands)
		if i.HasDst {
			return fmt.Sprintf("test(%s, %s, [%s], [%s], %s)", i.TestName, i.Fail, joinOperands(i.Live), ops, i.Dst)
		}
		return fmt.Sprintf("test(%s, %s, [%s])", i.TestName, i.Fail, ops)
	case OpSelectVal, OpSelectTupleArity:
		var sb strings.Builder
		for n, c := range i.Cases {
			if n > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s->%s", c.Value, c.Target)
		}
		return fmt.Sprintf("%s(%s, %s, [%s])", i.Op, i.Reg, i.Fail, sb.String())
	case OpCall, OpCallLast, OpCallOnly:
		return fmt.Sprintf("%s(%d, %s)", i.Op, i.Arity, i.Target)
	case OpCallExt, OpCallExtLast, OpCallExtOnly:
		return fmt.Sprintf("%s(%d, %s)", i.Op, i.Arity, i.MFA)
	case OpApplyLast:
		return fmt.Sprintf("apply_last(%d)", i.Arity)
	case OpReturn:
		return "return"
	case OpWait:
		return fmt.Sprintf("wait(%s)", i.Target)
	case OpWaitTimeout:
		return fmt.Sprintf("wait_timeout(%s, %s)", joinOperands(i.Operands), i.Fail)
	case OpLoopRec:
		return fmt.Sprintf("loop_rec(%s, %s)", i.Fail, i.Dst)
	case OpLoopRecEnd:
		return fmt.Sprintf("loop_rec_end(%s)", i.Target)
	case OpTry:
		return fmt.Sprintf("try(%s, %s)", i.Dst, i.Handler)
	case OpCatch:
		return fmt.Sprintf("catch(%s, %s)", i.Dst, i.Handler)
	case OpKill:
		return fmt.Sprintf("kill(%s)", i.Dst)
	case OpDeallocate:
		return fmt.Sprintf("deallocate(%d)", i.Arity)
	case OpBlock:
		var sb strings.Builder
		for n, in := range i.Inner {
			if n > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(in.String())
		}
		return fmt.Sprintf("block([%s])", sb.String())
	case OpBSContextToBinary:
		return fmt.Sprintf("bs_context_to_binary(%s)", i.Dst)
	case OpBSInit2, OpBSInitBits, OpBSPutInteger, OpBSPutFloat, OpBSPutBinary,
		OpBSPutUTF8, OpBSPutUTF16, OpBSPutUTF32, OpBSAdd, OpBSAppend,
		OpBSUTF8Size, OpBSUTF16Size:
		return fmt.Sprintf("%s(%s, %s)", i.Op, i.Fail, joinOperands(i.Args))
	case OpCaseEnd:
		return fmt.Sprintf("case_end(%s)", i.Dst)
	case OpIfEnd:
		return "if_end"
	case OpTryCaseEnd:
		return fmt.Sprintf("try_case_end(%s)", i.Dst)
	case OpBadmatch:
		return fmt.Sprintf("badmatch(%s)", i.Dst)
	case OpBif:
		return fmt.Sprintf("bif(%s, %s, [%s], %s)", i.Mnemonic, i.Fail, joinOperands(i.Args), i.Dst)
	case OpGCBif:
		return fmt.Sprintf("gc_bif(%s, %s, [%s], %s)", i.Mnemonic, i.Fail, joinOperands(i.Args), i.Dst)
	case OpOpaque:
		return fmt.Sprintf("%s(%s)", i.Mnemonic, joinOperands(i.Args))
	default:
		return i.Op.String()
	}
}

func joinOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}
