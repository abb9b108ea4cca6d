package scheduler

import "sync/atomic"

// Generation is a monotonic structural version counter.
//
// Every mutation of the dependency index, the node set or the boundary set
// bumps it. A derived value (the execution plan) records the generation it
// was built at and is stale once the counter moves on.
//
// Thread-safety: Generation is safe for concurrent use (atomic operations).
type Generation struct {
	n atomic.Uint64
}

// Bump advances the counter and returns the new value.
func (g *Generation) Bump() uint64 {
	return g.n.Add(1)
}

// Current returns the counter without advancing it.
func (g *Generation) Current() uint64 {
	return g.n.Load()
}
