// Package oracle provides the "does calling external function {M,F,A}
// always raise?" collaborator the Exits classifier consults. The optimizer
// itself never inspects a callee's body; this package is where that
// knowledge is supplied from outside.
package oracle

import "github.com/vmjump/bjo/pkg/ir"

// StaticOracle is a zero-configuration ir.Oracle backed by a fixed set of
// well-known always-raising BIFs (erlang:error/1,2, erlang:exit/1 and
// erlang:throw/1), plus whatever entries the caller adds.
type StaticOracle struct {
	always map[ir.MFA]bool
}

// NewStaticOracle returns a StaticOracle seeded with the well-known
// always-raising external calls.
func NewStaticOracle() *StaticOracle {
	o := &StaticOracle{always: make(map[ir.MFA]bool)}
	for _, m := range defaultAlwaysRaises {
		o.always[m] = true
	}
	return o
}

var defaultAlwaysRaises = []ir.MFA{
	{Module: "erlang", Function: "error", Arity: 1},
	{Module: "erlang", Function: "error", Arity: 2},
	{Module: "erlang", Function: "exit", Arity: 1},
	{Module: "erlang", Function: "throw", Arity: 1},
}

// Add registers an additional external call as always-raising.
func (o *StaticOracle) Add(mfa ir.MFA) {
	o.always[mfa] = true
}

// AlwaysRaises implements ir.Oracle.
func (o *StaticOracle) AlwaysRaises(mfa ir.MFA) bool {
	return o.always[mfa]
}
