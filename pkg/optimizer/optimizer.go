// Package optimizer implements the jump and unreachable-code optimizer: a
// four-pass pipeline (Share, Sink, PeepholeAndPrune, Cleanup) over a single
// function's instruction list, exposed per function as Optimize and
// LabelClean and per module as OptimizeModule and LabelCleanModule, the two
// entry points a parent compilation pipeline calls.
package optimizer

import (
	"fmt"
	"io"
	"os"

	"github.com/vmjump/bjo/pkg/ir"
)

// Options controls tracing and concurrency for the module-level entry
// points. The zero value runs single-threaded with no tracing, matching
// the teacher's own debug-gated fmt.Fprintf idiom rather than pulling in a
// logging library.
type Options struct {
	// Debug turns on per-pass instruction-count tracing.
	Debug bool
	// Trace, in addition to Debug, prints the instruction list after
	// every pass.
	Trace bool
	// Out is where Debug/Trace output goes. Defaults to os.Stderr.
	Out io.Writer
	// Parallel runs Optimize across a module's functions concurrently.
	// Safe because functions share no mutable state.
	Parallel bool
	// Oracle answers "does this external call always raise?" for the
	// Exits classifier. A nil Oracle behaves like ir.NopOracle.
	Oracle ir.Oracle
}

func (o Options) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return os.Stderr
}

func (o Options) oracle() ir.Oracle {
	if o.Oracle != nil {
		return o.Oracle
	}
	return ir.NopOracle{}
}

func (o Options) trace(fn *ir.Function, pass string, body []ir.Instruction) {
	if !o.Debug {
		return
	}
	fmt.Fprintf(o.out(), "[bjo] %s/%d: %s -> %d instructions\n", fn.Name, fn.Arity, pass, len(body))
	if o.Trace {
		for i, inst := range body {
			fmt.Fprintf(o.out(), "[bjo]   %3d: %s\n", i, inst)
		}
	}
}

// Optimize runs all four passes over a single function and returns a new
// *ir.Function with the rewritten body. The input function is never
// mutated. A malformed function (violating the §3 layout invariant)
// produces a *Diagnostic error and no partial result.
func Optimize(fn *ir.Function, opts Options) (*ir.Function, error) {
	fc, err := validate(fn)
	if err != nil {
		return nil, err
	}
	oracle := opts.oracle()
	entry := fn.CallerLabel

	body := fn.Body
	opts.trace(fn, "input", body)

	body = share(oracle, body)
	opts.trace(fn, "share", body)

	body = sink(oracle, body)
	opts.trace(fn, "sink", body)

	body = peepholeAndPrune(oracle, entry, fc, body)
	opts.trace(fn, "peephole+prune", body)

	body = cleanup(oracle, entry, fc, body)
	opts.trace(fn, "cleanup", body)

	return &ir.Function{
		Name:        fn.Name,
		Arity:       fn.Arity,
		CallerLabel: fn.CallerLabel,
		Body:        body,
	}, nil
}

// LabelClean runs only pass 4 (Cleanup) over a single function. It is the
// sibling entry point used when a caller only needs stale label
// definitions and unreachable tails swept away, without the rest of the
// pipeline's rewrites.
func LabelClean(fn *ir.Function, opts Options) (*ir.Function, error) {
	fc, err := validate(fn)
	if err != nil {
		return nil, err
	}
	oracle := opts.oracle()

	body := cleanup(oracle, fn.CallerLabel, fc, fn.Body)
	opts.trace(fn, "label-clean", body)

	return &ir.Function{
		Name:        fn.Name,
		Arity:       fn.Arity,
		CallerLabel: fn.CallerLabel,
		Body:        body,
	}, nil
}
