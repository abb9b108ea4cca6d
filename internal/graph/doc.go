// Package graph implements the dependency index at the core of the node-graph
// scheduler: a bidirectional adjacency map between node references, the
// topological ordering derived from it, layer assignment for parallel
// dispatch, and cycle diagnostics.
//
// ORDERING POLICY:
//
// Execution order is deterministic for a given sequence of mutations.
//   - Roots are visited in first-seen order. A node is seen when AddNode or
//     AddDependency first names it; AddDependency names the dependent first.
//   - A node's dependencies are visited in edge-insertion order.
//   - A node is emitted after all of its dependencies (post-order), so every
//     dependency precedes its dependents.
//
// The traversal uses an explicit stack, so graph depth is not bounded by the
// goroutine stack.
//
// LOCKING:
//
// Index guards all state with one sync.RWMutex. Mutations hold the write lock
// for their whole duration, which keeps the reverse map an exact transpose of
// the forward map at every observable point. Derivations (order, layers,
// cycles) hold the read lock for the whole computation.
package graph
