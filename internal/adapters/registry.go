package adapters

// All returns the closed set of adapters in priority order. The order
// matters only as a tie-break when two adapters report equal
// confidence; detection itself is driven by each adapter's own Detect
// score.
func All() []TestAdapter {
	return []TestAdapter{
		Cargo{},
		Catch2{},
		Deno{},
		Vitest{},
		Jest{},
		Bun{},
		Mocha{},
		Pytest{},
		Unittest{},
		Generic{},
	}
}

// Detect scores every adapter against root/command and returns the
// highest-confidence match. Cross-adapter suppression (Vitest/Jest
// disqualifying Mocha/Bun, pytest config disqualifying unittest) is
// implemented inside each adapter's own Detect, matching the
// teacher's closed-registry style of self-contained definitions — the
// registry itself just picks the max score.
func Detect(root, command string) (TestAdapter, int) {
	var best TestAdapter
	bestScore := -1
	for _, a := range All() {
		score := a.Detect(root, command)
		if score > bestScore {
			best = a
			bestScore = score
		}
	}
	return best, bestScore
}

// ByName returns the adapter with the given Name(), for explicit
// overrides that bypass Detect entirely.
func ByName(name string) (TestAdapter, bool) {
	for _, a := range All() {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}
