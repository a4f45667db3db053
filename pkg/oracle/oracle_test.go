package oracle

import (
	"testing"

	"github.com/vmjump/bjo/pkg/ir"
)

// compile-time assertions that both oracles satisfy ir.Oracle.
var (
	_ ir.Oracle = (*StaticOracle)(nil)
	_ ir.Oracle = (*LuaOracle)(nil)
)

func TestStaticOracleDefaults(t *testing.T) {
	o := NewStaticOracle()
	tests := []struct {
		mfa  ir.MFA
		want bool
	}{
		{ir.MFA{Module: "erlang", Function: "error", Arity: 1}, true},
		{ir.MFA{Module: "erlang", Function: "error", Arity: 2}, true},
		{ir.MFA{Module: "erlang", Function: "exit", Arity: 1}, true},
		{ir.MFA{Module: "erlang", Function: "throw", Arity: 1}, true},
		{ir.MFA{Module: "lists", Function: "reverse", Arity: 1}, false},
	}
	for _, tt := range tests {
		if got := o.AlwaysRaises(tt.mfa); got != tt.want {
			t.Errorf("AlwaysRaises(%v) = %v, want %v", tt.mfa, got, tt.want)
		}
	}
}

func TestStaticOracleAdd(t *testing.T) {
	o := NewStaticOracle()
	mfa := ir.MFA{Module: "myapp", Function: "fatal", Arity: 1}
	if o.AlwaysRaises(mfa) {
		t.Fatalf("unregistered MFA should not be always-raising")
	}
	o.Add(mfa)
	if !o.AlwaysRaises(mfa) {
		t.Fatalf("registered MFA should be always-raising")
	}
}

func TestLuaOracle(t *testing.T) {
	script := `
function always_raises(mod, fn, arity)
    if mod == "myapp" and fn == "fatal" then
        return true
    end
    return false
end
`
	o, err := NewLuaOracle(script)
	if err != nil {
		t.Fatalf("NewLuaOracle: %v", err)
	}
	defer o.Close()

	if !o.AlwaysRaises(ir.MFA{Module: "myapp", Function: "fatal", Arity: 1}) {
		t.Errorf("expected myapp:fatal/1 to be always-raising")
	}
	if o.AlwaysRaises(ir.MFA{Module: "lists", Function: "reverse", Arity: 1}) {
		t.Errorf("expected lists:reverse/1 to not be always-raising")
	}
}

func TestLuaOracleMissingFunction(t *testing.T) {
	if _, err := NewLuaOracle("local x = 1"); err == nil {
		t.Fatalf("expected an error when always_raises is undefined")
	}
}
