package optimizer

// state is the bookkeeping pass 3 (peephole + prune) threads through a
// single forward walk of one function's body.
type state struct {
	// fc is the function-class (argument-check-failure) label: the label
	// immediately following func_info. Never deleted, never absorbed as a
	// merge source; may be a merge target, reclaimed at the end of the
	// walk by the function-class tail rule.
	fc int

	// entry is the caller-visible entry label (the function's
	// CallerLabel). Never deleted, never absorbed as a merge source or
	// target.
	entry int

	// relocated maps a label to the labels that have been merged into it:
	// relocated[L2] contains every L1 for which a label(L1), jump(L2)
	// pair was collapsed by rule 3. Entries are consumed (and removed)
	// when L2's own label instruction is reached during the walk, or at
	// the very end of the walk for fc specifically.
	relocated map[int][]int

	// used records every label referenced by an instruction this walk has
	// already emitted (or is in the process of emitting), seeded with
	// entry and fc themselves: §3 makes both sacred ("never deleted"), and
	// unreachable-skip must not sweep either away just because nothing has
	// jumped to them yet in this walk.
	used map[int]bool
}

func newState(entry, fc int) *state {
	return &state{
		fc:        fc,
		entry:     entry,
		relocated: make(map[int][]int),
		used:      map[int]bool{entry: true, fc: true},
	}
}

// sacred reports whether label n is entry or fc: a merge source that rule 3
// must never absorb.
func (s *state) sacred(n int) bool {
	return n == s.entry || n == s.fc
}

// flatten returns every label transitively merged into L (including L
// itself, first) and deletes the map entry for L. Recorded in merge order:
// [L, immediate absorptions in registration order, their own absorptions,
// ...].
func (s *state) flatten(l int) []int {
	out := []int{l}
	absorbed := s.relocated[l]
	delete(s.relocated, l)
	for _, a := range absorbed {
		out = append(out, s.flatten(a)...)
	}
	return out
}
