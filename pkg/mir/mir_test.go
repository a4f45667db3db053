package mir

import (
	"testing"

	"github.com/vmjump/bjo/pkg/ir"
)

func buildFixture(name string, rest ...ir.Instruction) *ir.Module {
	body := append([]ir.Instruction{
		ir.FuncInfo(ir.MFA{Module: "fixtures", Function: name, Arity: 0}),
		ir.Label(1),
	}, rest...)
	m := ir.NewModule("fixtures")
	m.Exports = append(m.Exports, ir.Export{Function: name, Arity: 0})
	m.Attributes = append(m.Attributes, ir.Attribute{Key: "vsn", Value: "1"})
	m.LiteralCount = 0
	m.AddFunction(&ir.Function{Name: name, Arity: 0, CallerLabel: 2, Body: body})
	return m
}

func roundTrip(t *testing.T, m *ir.Module) *ir.Module {
	t.Helper()
	text := Sprint(m)
	got, err := ParseString(text)
	if err != nil {
		t.Fatalf("ParseString: %v\n--- text ---\n%s", err, text)
	}
	if Sprint(got) != text {
		t.Fatalf("round trip changed the rendering:\nwant:\n%s\ngot:\n%s", text, Sprint(got))
	}
	return got
}

func TestRoundTripRedundantTestJumpCollapse(t *testing.T) {
	m := buildFixture("s1",
		ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)),
		ir.Jump(4),
		ir.Label(2),
		ir.Label(3),
		ir.Return(),
		ir.Label(4),
		ir.Return(),
	)
	roundTrip(t, m)
}

func TestRoundTripJumpToNextLabelRemoval(t *testing.T) {
	m := buildFixture("s2", ir.Jump(3), ir.Label(3), ir.Return())
	roundTrip(t, m)
}

func TestRoundTripTailSharing(t *testing.T) {
	m := buildFixture("s3",
		ir.Label(11),
		ir.Opaque("move", ir.RegX(0), ir.RegX(1)),
		ir.Return(),
		ir.Label(12),
		ir.Test("is_eq", 99, ir.RegX(0)),
		ir.Label(13),
		ir.Opaque("move", ir.RegX(0), ir.RegX(1)),
		ir.Return(),
		ir.Label(99),
		ir.Return(),
	)
	roundTrip(t, m)
}

func TestRoundTripExitSinking(t *testing.T) {
	m := buildFixture("s4",
		ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)),
		ir.Badmatch(ir.RegX(1)),
		ir.Label(3),
		ir.Return(),
	)
	roundTrip(t, m)
}

func TestRoundTripUnreachableRemoval(t *testing.T) {
	m := buildFixture("s5",
		ir.Return(),
		ir.Opaque("move", ir.RegX(0), ir.RegX(1)),
		ir.Return(),
		ir.Label(3),
		ir.Return(),
	)
	roundTrip(t, m)
}

func TestRoundTripLabelMerge(t *testing.T) {
	m := buildFixture("s6",
		ir.Wait(5),
		ir.Label(5),
		ir.Jump(6),
		ir.Label(6),
		ir.Return(),
	)
	roundTrip(t, m)
}

// A function exercising a broad sample of instruction shapes, to stress the
// parser's per-op branches.
func TestRoundTripAllShapes(t *testing.T) {
	m := buildFixture("kitchen_sink",
		ir.TestWithDst("is_ge", 3, []ir.Operand{ir.RegX(0)}, []ir.Operand{ir.RegX(0), ir.Integer(1)}, ir.RegX(1)),
		ir.Label(3),
		ir.SelectVal(ir.RegX(0), 4, ir.Case{Value: ir.Integer(1), Target: 5}, ir.Case{Value: ir.Atom("ok"), Target: 6}),
		ir.Label(4),
		ir.Label(5),
		ir.Label(6),
		ir.Call(2, 7),
		ir.Label(7),
		ir.CallExt(ir.MFA{Module: "lists", Function: "reverse", Arity: 1}),
		ir.ApplyLast(1),
		ir.WaitTimeout(ir.Integer(1000), 8),
		ir.Label(8),
		ir.LoopRec(9, ir.RegX(0)),
		ir.Label(9),
		ir.LoopRecEnd(3),
		ir.Try(ir.RegY(0), 10),
		ir.Label(10),
		ir.Catch(ir.RegY(0), 11),
		ir.Label(11),
		ir.Kill(ir.RegY(0)),
		ir.Deallocate(1),
		ir.Block(ir.Bif("+", ir.NoLabel, []ir.Operand{ir.RegX(0), ir.Integer(1)}, ir.RegX(0))),
		ir.BSContextToBinary(ir.RegX(0)),
		ir.BSInit2(12, ir.RegX(0), ir.Integer(4)),
		ir.Label(12),
		ir.GCBif("byte_size", 13, []ir.Operand{ir.RegX(0)}, ir.RegX(1)),
		ir.Label(13),
		ir.CaseEnd(ir.RegX(0)),
		ir.IfEnd(),
		ir.TryCaseEnd(ir.RegX(0)),
		ir.Opaque("move", ir.RegX(0), ir.Nil()),
		ir.Return(),
	)
	roundTrip(t, m)
}
