package optimizer

import (
	"fmt"
	"sync"

	"github.com/vmjump/bjo/pkg/ir"
)

// OptimizeModule runs Optimize across every function in m and returns a new
// *ir.Module with the rewritten functions, in their original order. With
// Options.Parallel set, functions are optimized concurrently: passes share
// no mutable state across functions, so this is safe.
func OptimizeModule(m *ir.Module, opts Options) (*ir.Module, error) {
	return runModule(m, opts, Optimize)
}

// LabelCleanModule runs LabelClean (pass 4 only) across every function in
// m and returns a new *ir.Module with the rewritten functions.
func LabelCleanModule(m *ir.Module, opts Options) (*ir.Module, error) {
	return runModule(m, opts, LabelClean)
}

func runModule(m *ir.Module, opts Options, step func(*ir.Function, Options) (*ir.Function, error)) (*ir.Module, error) {
	out := &ir.Module{
		Name:         m.Name,
		Exports:      m.Exports,
		Attributes:   m.Attributes,
		LiteralCount: m.LiteralCount,
		Functions:    make([]*ir.Function, len(m.Functions)),
	}

	if !opts.Parallel {
		for i, fn := range m.Functions {
			next, err := step(fn, opts)
			if err != nil {
				return nil, fmt.Errorf("%s/%d: %w", fn.Name, fn.Arity, err)
			}
			out.Functions[i] = next
		}
		return out, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(m.Functions))
	for i, fn := range m.Functions {
		wg.Add(1)
		go func(i int, fn *ir.Function) {
			defer wg.Done()
			next, err := step(fn, opts)
			if err != nil {
				errs[i] = fmt.Errorf("%s/%d: %w", fn.Name, fn.Arity, err)
				return
			}
			out.Functions[i] = next
		}(i, fn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
