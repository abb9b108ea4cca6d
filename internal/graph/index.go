package graph

import (
	"fmt"
	"sync"
)

// NodeRef is an opaque, stable handle for a node. The index only holds
// references; node lifetime belongs to whoever registered the node.
type NodeRef string

// Edge is an ordered (dependent, dependency) pair: Dependent requires the
// output of Dependency.
type Edge struct {
	Dependent  NodeRef `json:"dependent"`
	Dependency NodeRef `json:"dependency"`
}

// Wire is a port-level data edge: output FromPort of From feeds input ToPort
// of To. Every wire implies the dependency (To, From).
type Wire struct {
	From     NodeRef `json:"from"`
	FromPort string  `json:"from_port"`
	To       NodeRef `json:"to"`
	ToPort   string  `json:"to_port"`
}

// String renders the wire as "from.port -> to.port".
func (w Wire) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", w.From, w.FromPort, w.To, w.ToPort)
}

// refSet is an insertion-ordered set of node references.
type refSet struct {
	items []NodeRef
	has   map[NodeRef]struct{}
}

func newRefSet() *refSet {
	return &refSet{has: make(map[NodeRef]struct{})}
}

func (s *refSet) add(ref NodeRef) bool {
	if _, ok := s.has[ref]; ok {
		return false
	}
	s.has[ref] = struct{}{}
	s.items = append(s.items, ref)
	return true
}

func (s *refSet) remove(ref NodeRef) bool {
	if _, ok := s.has[ref]; !ok {
		return false
	}
	delete(s.has, ref)
	for i, item := range s.items {
		if item == ref {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

func (s *refSet) contains(ref NodeRef) bool {
	_, ok := s.has[ref]
	return ok
}

func (s *refSet) list() []NodeRef {
	out := make([]NodeRef, len(s.items))
	copy(out, s.items)
	return out
}

func (s *refSet) len() int {
	return len(s.items)
}

// Index is the bidirectional dependency index.
//
// forward[a] holds the nodes a depends on; reverse[b] holds the nodes that
// depend on b. Both are updated under the same write lock, so reverse is
// always the exact transpose of forward.
//
// Thread-safety: all methods are safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	nodes   *refSet
	forward map[NodeRef]*refSet
	reverse map[NodeRef]*refSet
	wires   map[NodeRef][]Wire // keyed by Wire.To, insertion order
}

// NewIndex creates an empty dependency index.
func NewIndex() *Index {
	return &Index{
		nodes:   newRefSet(),
		forward: make(map[NodeRef]*refSet),
		reverse: make(map[NodeRef]*refSet),
		wires:   make(map[NodeRef][]Wire),
	}
}

// AddNode registers a node without edges so it takes part in ordering and
// layering. Adding a known node is a no-op.
func (x *Index) AddNode(ref NodeRef) error {
	if ref == "" {
		return &Error{Code: ErrCodeInvalidEdge, Message: "empty node reference"}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.nodes.add(ref)
	return nil
}

// AddDependency records that dependent depends on dependency. Idempotent.
// Returns ErrCodeInvalidEdge for a self-dependency or an empty reference.
func (x *Index) AddDependency(dependent, dependency NodeRef) error {
	if err := validateEdge(dependent, dependency); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addDependencyLocked(dependent, dependency)
	return nil
}

func validateEdge(dependent, dependency NodeRef) error {
	if dependent == "" || dependency == "" {
		return NewInvalidEdgeError(dependent, dependency, "empty node reference")
	}
	if dependent == dependency {
		return NewInvalidEdgeError(dependent, dependency, "a node cannot depend on itself")
	}
	return nil
}

func (x *Index) addDependencyLocked(dependent, dependency NodeRef) bool {
	x.nodes.add(dependent)
	x.nodes.add(dependency)

	fwd, ok := x.forward[dependent]
	if !ok {
		fwd = newRefSet()
		x.forward[dependent] = fwd
	}
	rev, ok := x.reverse[dependency]
	if !ok {
		rev = newRefSet()
		x.reverse[dependency] = rev
	}
	added := fwd.add(dependency)
	rev.add(dependent)
	return added
}

// AddWire records a port-level connection and the dependency it implies.
// Duplicate wires are ignored. An input port accepts one wire.
func (x *Index) AddWire(w Wire) error {
	if err := validateEdge(w.To, w.From); err != nil {
		return err
	}
	if w.FromPort == "" || w.ToPort == "" {
		return NewInvalidEdgeError(w.To, w.From, "wire ports must be named")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, existing := range x.wires[w.To] {
		if existing == w {
			return nil
		}
		if existing.ToPort == w.ToPort {
			return NewInvalidEdgeError(w.To, w.From,
				fmt.Sprintf("input port %q already wired from %s.%s", w.ToPort, existing.From, existing.FromPort))
		}
	}
	x.addDependencyLocked(w.To, w.From)
	x.wires[w.To] = append(x.wires[w.To], w)
	return nil
}

// RemoveDependency removes the edge and every wire between the pair.
// Returns false if the edge did not exist. Nodes stay registered.
func (x *Index) RemoveDependency(dependent, dependency NodeRef) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeDependencyLocked(dependent, dependency)
}

func (x *Index) removeDependencyLocked(dependent, dependency NodeRef) bool {
	fwd, ok := x.forward[dependent]
	if !ok || !fwd.remove(dependency) {
		return false
	}
	if fwd.len() == 0 {
		delete(x.forward, dependent)
	}
	if rev, ok := x.reverse[dependency]; ok {
		rev.remove(dependent)
		if rev.len() == 0 {
			delete(x.reverse, dependency)
		}
	}

	kept := x.wires[dependent][:0]
	for _, w := range x.wires[dependent] {
		if w.From != dependency {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		delete(x.wires, dependent)
	} else {
		x.wires[dependent] = kept
	}
	return true
}

// RemoveNode removes ref and every edge touching it. Returns false if ref
// was unknown.
func (x *Index) RemoveNode(ref NodeRef) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.nodes.contains(ref) {
		return false
	}
	if fwd, ok := x.forward[ref]; ok {
		for _, dep := range fwd.list() {
			x.removeDependencyLocked(ref, dep)
		}
	}
	if rev, ok := x.reverse[ref]; ok {
		for _, dependent := range rev.list() {
			x.removeDependencyLocked(dependent, ref)
		}
	}
	x.nodes.remove(ref)
	return true
}

// Has reports whether ref is registered.
func (x *Index) Has(ref NodeRef) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.nodes.contains(ref)
}

// Nodes returns all registered nodes in first-seen order.
func (x *Index) Nodes() []NodeRef {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.nodes.list()
}

// Dependencies returns the nodes ref depends on, in insertion order.
func (x *Index) Dependencies(ref NodeRef) []NodeRef {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.depsLocked(ref)
}

func (x *Index) depsLocked(ref NodeRef) []NodeRef {
	if fwd, ok := x.forward[ref]; ok {
		return fwd.list()
	}
	return nil
}

// Dependents returns the nodes that depend on ref, in insertion order.
func (x *Index) Dependents(ref NodeRef) []NodeRef {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if rev, ok := x.reverse[ref]; ok {
		return rev.list()
	}
	return nil
}

// Edges returns every edge, grouped by dependent in first-seen order.
func (x *Index) Edges() []Edge {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var edges []Edge
	for _, ref := range x.nodes.items {
		for _, dep := range x.depsLocked(ref) {
			edges = append(edges, Edge{Dependent: ref, Dependency: dep})
		}
	}
	return edges
}

// Wires returns every wire, grouped by consumer in first-seen order.
func (x *Index) Wires() []Wire {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var wires []Wire
	for _, ref := range x.nodes.items {
		wires = append(wires, x.wires[ref]...)
	}
	return wires
}

// WiresInto returns the wires feeding ref's input ports.
func (x *Index) WiresInto(ref NodeRef) []Wire {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Wire, len(x.wires[ref]))
	copy(out, x.wires[ref])
	return out
}

// Snapshot is a consistent, immutable copy of the index taken under one read
// lock. Callers that run several derivations use it to avoid observing
// different states between them.
type Snapshot struct {
	Nodes []NodeRef
	known map[NodeRef]struct{}
	deps  map[NodeRef][]NodeRef
	wires []Wire
}

// Snapshot copies the current index state.
func (x *Index) Snapshot() *Snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := &Snapshot{
		Nodes: x.nodes.list(),
		known: make(map[NodeRef]struct{}, x.nodes.len()),
		deps:  make(map[NodeRef][]NodeRef, len(x.forward)),
	}
	for _, ref := range s.Nodes {
		s.known[ref] = struct{}{}
	}
	for ref, fwd := range x.forward {
		s.deps[ref] = fwd.list()
	}
	for _, ref := range x.nodes.items {
		s.wires = append(s.wires, x.wires[ref]...)
	}
	return s
}

// Has reports whether ref was known when the snapshot was taken.
func (s *Snapshot) Has(ref NodeRef) bool {
	_, ok := s.known[ref]
	return ok
}

// Dependencies returns the dependencies of ref in insertion order.
func (s *Snapshot) Dependencies(ref NodeRef) []NodeRef {
	return s.deps[ref]
}

// Wires returns all wires in the snapshot.
func (s *Snapshot) Wires() []Wire {
	return s.wires
}

// ExecutionOrder computes the topological order of the snapshot.
func (s *Snapshot) ExecutionOrder() ([]NodeRef, error) {
	order, cycle := TopoSort(s.Nodes, s.Dependencies)
	if cycle != nil {
		return nil, NewCycleError(cycle)
	}
	return order, nil
}
