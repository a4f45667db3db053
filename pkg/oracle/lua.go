package oracle

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/vmjump/bjo/pkg/ir"
)

// LuaOracle answers always-raises queries by calling into a user-supplied
// Lua script. The script must define a global function
//
//	function always_raises(module, function, arity)
//	    ...
//	    return true or false
//	end
//
// which is invoked once per distinct {M,F,A} and memoized.
type LuaOracle struct {
	L      *lua.LState
	cache  map[ir.MFA]bool
	fnName string
}

// NewLuaOracle loads script and returns a LuaOracle backed by its
// always_raises function.
func NewLuaOracle(script string) (*LuaOracle, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("oracle: loading script: %w", err)
	}
	fn := L.GetGlobal("always_raises")
	if fn == lua.LNil {
		L.Close()
		return nil, fmt.Errorf("oracle: script does not define always_raises(module, function, arity)")
	}
	return &LuaOracle{L: L, cache: make(map[ir.MFA]bool), fnName: "always_raises"}, nil
}

// Close releases the embedded Lua state.
func (o *LuaOracle) Close() {
	o.L.Close()
}

// AlwaysRaises implements ir.Oracle by calling always_raises(M, F, A) in
// the embedded script and coercing the result to a bool.
func (o *LuaOracle) AlwaysRaises(mfa ir.MFA) bool {
	if v, ok := o.cache[mfa]; ok {
		return v
	}

	fn := o.L.GetGlobal(o.fnName)
	o.L.Push(fn)
	o.L.Push(lua.LString(mfa.Module))
	o.L.Push(lua.LString(mfa.Function))
	o.L.Push(lua.LNumber(mfa.Arity))

	result := false
	if err := o.L.PCall(3, 1, nil); err == nil {
		v := o.L.Get(-1)
		o.L.Pop(1)
		if b, ok := v.(lua.LBool); ok {
			result = bool(b)
		}
	}

	o.cache[mfa] = result
	return result
}
