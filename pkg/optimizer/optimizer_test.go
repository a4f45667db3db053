package optimizer

import (
	"testing"

	"github.com/vmjump/bjo/pkg/ir"
)

func mustOptimize(t *testing.T, fn *ir.Function) *ir.Function {
	t.Helper()
	out, err := Optimize(fn, Options{})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	return out
}

// wrap assembles a function body with the mandatory [func_info, label(fc),
// …] prefix (fc = caller-1) and CallerLabel = caller. If rest doesn't
// already define label(caller) somewhere, one is inserted right after fc so
// every fixture satisfies the function-layout invariant validate() checks.
func wrap(name string, arity, caller int, rest ...ir.Instruction) *ir.Function {
	body := []ir.Instruction{
		ir.FuncInfo(ir.MFA{Module: "m", Function: name, Arity: arity}),
		ir.Label(caller - 1),
	}
	if !definesLabel(rest, caller) {
		body = append(body, ir.Label(caller))
	}
	body = append(body, rest...)
	return &ir.Function{Name: name, Arity: arity, CallerLabel: caller, Body: body}
}

func definesLabel(body []ir.Instruction, l int) bool {
	for _, inst := range body {
		if inst.Op == ir.OpLabel && inst.Def == l {
			return true
		}
	}
	return false
}

func move() ir.Instruction { return ir.Opaque("move", ir.RegX(0), ir.RegX(1)) }

// Scenario 1: redundant test+jump collapse (rule 2 inversion).
func TestScenarioRedundantTestJumpCollapse(t *testing.T) {
	fn := wrap("s1", 0, 2,
		ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)),
		ir.Jump(4),
		ir.Label(2),
		ir.Label(3),
		ir.Return(),
		ir.Label(4),
		ir.Return(),
	)
	out := mustOptimize(t, fn)

	tests, returns := 0, 0
	var inverted ir.Instruction
	for _, inst := range out.Body {
		switch inst.Op {
		case ir.OpTest:
			tests++
			inverted = inst
		case ir.OpReturn:
			returns++
		}
	}
	if tests != 1 || inverted.TestName != "is_ne" || inverted.Fail != 4 {
		t.Fatalf("expected exactly one test inverted to is_ne branching to L4, got %v", out.Body)
	}
	if returns != 1 {
		t.Fatalf("expected the two return paths collapsed to a single physical return, got %d: %v", returns, out.Body)
	}
}

// Scenario 2: jump-to-next-label removal (rule 5).
func TestScenarioJumpToNextLabelRemoval(t *testing.T) {
	fn := wrap("s2", 0, 2,
		ir.Jump(3),
		ir.Label(3),
		ir.Return(),
	)
	out := mustOptimize(t, fn)

	for _, inst := range out.Body {
		if inst.Op == ir.OpJump {
			t.Fatalf("expected the jump to the next label removed, got %v", out.Body)
		}
	}
	returns := 0
	for _, inst := range out.Body {
		if inst.Op == ir.OpReturn {
			returns++
		}
	}
	if returns != 1 {
		t.Fatalf("expected the function's single return to survive, got %d: %v", returns, out.Body)
	}
}

// Scenario 3: tail sharing.
func TestScenarioTailSharing(t *testing.T) {
	fn := wrap("s3", 0, 10,
		ir.Label(11),
		move(),
		ir.Return(),
		ir.Label(12),
		ir.Test("is_eq", 99, ir.RegX(0)),
		ir.Label(13),
		move(),
		ir.Return(),
		ir.Label(99),
		ir.Return(),
	)
	out := mustOptimize(t, fn)

	moves := 0
	for _, inst := range out.Body {
		if inst.Op == ir.OpOpaque && inst.Mnemonic == "move" {
			moves++
		}
	}
	if moves != 1 {
		t.Fatalf("expected tail sharing to leave exactly one physical move, got %d: %v", moves, out.Body)
	}
}

// Scenario 4: exit sinking.
func TestScenarioExitSinking(t *testing.T) {
	fn := wrap("s4", 0, 2,
		ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)),
		ir.Badmatch(ir.RegX(1)),
		ir.Label(3),
		ir.Return(),
	)
	out := mustOptimize(t, fn)

	if out.Body[len(out.Body)-1].Op != ir.OpBadmatch {
		t.Fatalf("expected badmatch sunk to the very end, got %v", out.Body)
	}
	sawReturn := false
	for _, inst := range out.Body[:len(out.Body)-1] {
		if inst.Op == ir.OpReturn {
			sawReturn = true
		}
	}
	if !sawReturn {
		t.Fatalf("expected the fast path's return to survive before the sunk exit: %v", out.Body)
	}
}

// Scenario 5: unreachable removal.
func TestScenarioUnreachableRemoval(t *testing.T) {
	fn := wrap("s5", 0, 2,
		ir.Return(),
		move(),
		ir.Return(),
		ir.Label(3),
		ir.Return(),
	)
	out := mustOptimize(t, fn)

	for _, inst := range out.Body {
		if inst.Op == ir.OpOpaque && inst.Mnemonic == "move" {
			t.Fatalf("expected the unreachable move after the first return to be removed, got %v", out.Body)
		}
		if inst.Op == ir.OpLabel && inst.Def == 3 {
			t.Fatalf("expected the now-unreferenced label(3) removed, got %v", out.Body)
		}
	}
}

// Scenario 6: label merge, with a genuine backward reference to L1 via
// wait(L1) so L1 must be retained even after being absorbed into L2.
func TestScenarioLabelMerge(t *testing.T) {
	fn := wrap("s6", 0, 2,
		ir.Wait(5),
		ir.Label(5),
		ir.Jump(6),
		ir.Label(6),
		ir.Return(),
	)
	out := mustOptimize(t, fn)

	var saw5, saw6 bool
	for _, inst := range out.Body {
		if inst.Op == ir.OpLabel && inst.Def == 5 {
			saw5 = true
		}
		if inst.Op == ir.OpLabel && inst.Def == 6 {
			saw6 = true
		}
	}
	if !saw5 || !saw6 {
		t.Fatalf("expected both label(5) and label(6) retained (5 referenced by wait), got %v", out.Body)
	}
}

// Boundary: a minimal function — func_info immediately followed by its
// entry label doing double duty as fc, then a bare return — is unchanged.
func TestBoundaryMinimalFunctionUnchanged(t *testing.T) {
	fn := &ir.Function{
		Name: "min", Arity: 0, CallerLabel: 2,
		Body: []ir.Instruction{
			ir.FuncInfo(ir.MFA{Module: "m", Function: "min", Arity: 0}),
			ir.Label(2),
			ir.Return(),
		},
	}
	out := mustOptimize(t, fn)
	if !ir.SequenceEqual(out.Body, fn.Body) {
		t.Fatalf("expected minimal function unchanged, got %v", out.Body)
	}
}

// Boundary: one unreferenced label is removed along with everything up to
// the next label.
func TestBoundaryUnreferencedLabelRemoved(t *testing.T) {
	fn := wrap("unref", 0, 2,
		ir.Return(),
		ir.Label(3),
		move(),
		ir.Return(),
	)
	out := mustOptimize(t, fn)
	for _, inst := range out.Body {
		if inst.Op == ir.OpLabel && inst.Def == 3 {
			t.Fatalf("expected label(3) removed, got %v", out.Body)
		}
		if inst.Op == ir.OpOpaque && inst.Mnemonic == "move" {
			t.Fatalf("expected the move guarded only by the removed label to be removed, got %v", out.Body)
		}
	}
}

// Idempotence: optimizing an already-optimized function changes nothing.
func TestIdempotence(t *testing.T) {
	inputs := []*ir.Function{
		wrap("i1", 0, 2, ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)), ir.Jump(4), ir.Label(2), ir.Label(3), ir.Return(), ir.Label(4), ir.Return()),
		wrap("i2", 0, 2, ir.Jump(3), ir.Label(3), ir.Return()),
		wrap("i3", 0, 2, ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)), ir.Badmatch(ir.RegX(1)), ir.Label(3), ir.Return()),
	}
	for _, fn := range inputs {
		once := mustOptimize(t, fn)
		twice := mustOptimize(t, once)
		if !ir.SequenceEqual(once.Body, twice.Body) {
			t.Fatalf("%s: not idempotent:\nonce:  %v\ntwice: %v", fn.Name, once.Body, twice.Body)
		}
	}
}

// Determinism: repeated runs over the same input produce the same output.
func TestDeterminism(t *testing.T) {
	fn := wrap("det", 0, 2,
		ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)),
		ir.Jump(4),
		ir.Label(2),
		ir.Label(3),
		ir.Return(),
		ir.Label(4),
		ir.Return(),
	)
	a := mustOptimize(t, fn)
	b := mustOptimize(t, fn)
	if !ir.SequenceEqual(a.Body, b.Body) {
		t.Fatalf("nondeterministic output:\na: %v\nb: %v", a.Body, b.Body)
	}
}

// Every label used in the optimized body is defined exactly once, and
// every defined label is either entry, fc, or used.
func TestLabelInvariants(t *testing.T) {
	fn := wrap("inv", 0, 2,
		ir.Wait(5),
		ir.Label(5),
		ir.Jump(6),
		ir.Label(6),
		ir.Test("is_eq", 7, ir.RegX(1), ir.RegX(2)),
		ir.Badmatch(ir.RegX(1)),
		ir.Label(7),
		ir.Return(),
	)
	out := mustOptimize(t, fn)

	defs := map[int]int{}
	for _, inst := range out.Body {
		if inst.Op == ir.OpLabel {
			defs[inst.Def]++
		}
	}
	for l, n := range defs {
		if n != 1 {
			t.Fatalf("label %d defined %d times, want exactly 1", l, n)
		}
	}

	used := map[int]bool{out.CallerLabel: true, out.Body[1].Def: true}
	for _, inst := range out.Body {
		for _, l := range ir.LabelsOf(inst) {
			used[l] = true
		}
	}
	for l := range defs {
		if !used[l] {
			t.Fatalf("label %d defined but never referenced and not entry/fc", l)
		}
	}
}

// Round-trip: LabelClean after Optimize changes nothing.
func TestLabelCleanRoundTrip(t *testing.T) {
	fn := wrap("rt", 0, 2,
		ir.Test("is_eq", 3, ir.RegX(1), ir.RegX(2)),
		ir.Jump(4),
		ir.Label(2),
		ir.Label(3),
		ir.Return(),
		ir.Label(4),
		ir.Return(),
	)
	optimized := mustOptimize(t, fn)
	cleaned, err := LabelClean(optimized, Options{})
	if err != nil {
		t.Fatalf("LabelClean: %v", err)
	}
	if !ir.SequenceEqual(optimized.Body, cleaned.Body) {
		t.Fatalf("LabelClean changed an already-optimized body:\nbefore: %v\nafter:  %v", optimized.Body, cleaned.Body)
	}
}

// Module-level entry points thread every function through, sequentially
// and in parallel, with identical results.
func TestOptimizeModuleParallelMatchesSequential(t *testing.T) {
	mod := ir.NewModule("m")
	mod.AddFunction(wrap("a", 0, 2, ir.Jump(3), ir.Label(3), ir.Return()))
	mod.AddFunction(wrap("b", 1, 2, ir.Test("is_eq", 3, ir.RegX(1)), ir.Jump(4), ir.Label(2), ir.Label(3), ir.Return(), ir.Label(4), ir.Return()))

	seq, err := OptimizeModule(mod, Options{})
	if err != nil {
		t.Fatalf("sequential OptimizeModule: %v", err)
	}
	par, err := OptimizeModule(mod, Options{Parallel: true})
	if err != nil {
		t.Fatalf("parallel OptimizeModule: %v", err)
	}
	if len(seq.Functions) != len(par.Functions) {
		t.Fatalf("function count mismatch: %d vs %d", len(seq.Functions), len(par.Functions))
	}
	for i := range seq.Functions {
		if !ir.SequenceEqual(seq.Functions[i].Body, par.Functions[i].Body) {
			t.Fatalf("function %d differs between sequential and parallel runs", i)
		}
	}
}

// A malformed function produces a *Diagnostic, not a partial result.
func TestValidateRejectsMalformedFunction(t *testing.T) {
	fn := &ir.Function{
		Name:        "bad",
		Arity:       0,
		CallerLabel: 2,
		Body:        []ir.Instruction{ir.Return()},
	}
	_, err := Optimize(fn, Options{})
	if err == nil {
		t.Fatal("expected a diagnostic error for a malformed function body")
	}
	if _, ok := err.(*Diagnostic); !ok {
		t.Fatalf("expected *Diagnostic, got %T: %v", err, err)
	}
}
