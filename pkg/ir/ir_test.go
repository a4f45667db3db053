package ir

import "testing"

func TestTerminates(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
		want bool
	}{
		{"func_info", FuncInfo(MFA{"m", "f", 1}), true},
		{"jump", Jump(5), true},
		{"return", Return(), true},
		{"call_last", CallLast(1, 5), true},
		{"call_only", CallOnly(1, 5), true},
		{"call_ext_last", CallExtLast(MFA{"erlang", "error", 1}), true},
		{"select_val", SelectVal(RegX(0), 5), true},
		{"select_tuple_arity", SelectTupleArity(RegX(0), 5), true},
		{"wait", Wait(5), true},
		{"wait_timeout", WaitTimeout(Integer(1000), 5), true},
		{"loop_rec_end", LoopRecEnd(5), true},
		{"case_end", CaseEnd(RegX(0)), true},
		{"if_end", IfEnd(), true},
		{"try_case_end", TryCaseEnd(RegX(0)), true},
		{"badmatch", Badmatch(RegX(0)), true},
		{"plain call falls through", Call(1, 5), false},
		{"plain call_ext falls through", CallExt(MFA{"lists", "reverse", 1}), false},
		{"test falls through", Test("is_eq", 5, RegX(0), RegX(1)), false},
		{"label falls through", Label(1), false},
		{"opaque move falls through", Opaque("move", RegX(0), RegX(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Terminates(tt.inst, NopOracle{}); got != tt.want {
				t.Errorf("Terminates(%v) = %v, want %v", tt.inst, got, tt.want)
			}
		})
	}
}

func TestExits(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
		want bool
	}{
		{"case_end", CaseEnd(RegX(0)), true},
		{"if_end", IfEnd(), true},
		{"try_case_end", TryCaseEnd(RegX(0)), true},
		{"badmatch", Badmatch(RegX(0)), true},
		{"jump is not an exit", Jump(5), false},
		{"return is not an exit", Return(), false},
		{"plain call_ext is not an exit", CallExt(MFA{"lists", "reverse", 1}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Exits(tt.inst, NopOracle{}); got != tt.want {
				t.Errorf("Exits(%v) = %v, want %v", tt.inst, got, tt.want)
			}
		})
	}
}

type alwaysRaisesOracle struct{ mfa MFA }

func (o alwaysRaisesOracle) AlwaysRaises(m MFA) bool { return m == o.mfa }

func TestExitsWithOracle(t *testing.T) {
	mfa := MFA{"erlang", "error", 1}
	oracle := alwaysRaisesOracle{mfa: mfa}

	if !Exits(CallExt(mfa), oracle) {
		t.Errorf("call_ext to always-raising callee should be an exit")
	}
	if !Terminates(CallExt(mfa), oracle) {
		t.Errorf("call_ext to always-raising callee should also terminate")
	}
	if Exits(CallExt(MFA{"lists", "reverse", 1}), oracle) {
		t.Errorf("call_ext to an ordinary callee must not be an exit")
	}
}

func TestInvertTest(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"is_ge", "is_lt", true},
		{"is_lt", "is_ge", true},
		{"is_eq", "is_ne", true},
		{"is_ne", "is_eq", true},
		{"is_eq_exact", "is_ne_exact", true},
		{"is_ne_exact", "is_eq_exact", true},
		{"is_nonempty_list", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := InvertTest(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("InvertTest(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLabelsOf(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
		want []int
	}{
		{"jump", Jump(3), []int{3}},
		{"test", Test("is_eq", 7, RegX(0)), []int{7}},
		{"select_val", SelectVal(RegX(0), 9, Case{Integer(1), 10}, Case{Integer(2), 11}), []int{9, 10, 11}},
		{"call excluded", Call(1, 4), nil},
		{"call_ext excluded", CallExt(MFA{"lists", "reverse", 1}), nil},
		{"opaque has no labels", Opaque("move", RegX(0), RegX(1)), nil},
		{"sentinel excluded", Jump(NoLabel), nil},
		{"block not inspected", Block(Jump(3)), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LabelsOf(tt.inst)
			if !intsEqual(got, tt.want) {
				t.Errorf("LabelsOf(%v) = %v, want %v", tt.inst, got, tt.want)
			}
		})
	}
}

func intsEqual(a, b []int) bool {
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

func TestInstructionEqual(t *testing.T) {
	a := Test("is_eq", 5, RegX(0), RegX(1))
	b := Test("is_eq", 5, RegX(0), RegX(1))
	c := Test("is_eq", 6, RegX(0), RegX(1))
	if !a.Equal(b) {
		t.Errorf("identical tests should be Equal")
	}
	if a.Equal(c) {
		t.Errorf("tests with different fail labels should not be Equal")
	}
}
