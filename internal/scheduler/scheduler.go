package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/nodegraph/internal/boundary"
	"github.com/roach88/nodegraph/internal/compiler"
	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/node"
	"github.com/roach88/nodegraph/internal/store"
)

// RunRecorder persists plan runs. Implemented by store.Store.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.RunRecord) (int64, error)
}

// Scheduler owns one node graph: its nodes, dependency index, compilation
// boundaries and compiled subgraphs, and the execution plan derived from
// them.
//
// Construct one per graph and pass it by reference; there is no global
// instance.
//
// Thread-safety: all methods are safe for concurrent use. The index and the
// boundary manager carry their own locks; mu guards the node table, the
// compiled set and the cached plan.
type Scheduler struct {
	index      *graph.Index
	boundaries *boundary.Manager
	compiler   *compiler.Compiler
	gen        Generation

	mu       sync.RWMutex
	nodes    map[graph.NodeRef]node.Node
	compiled map[string]*compiler.CompiledSubgraph
	plan     *Plan

	recorder RunRecorder
	tokens   TokenGenerator
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithCompiler sets the subgraph compiler. Default: compiler.New() with the
// scheduler's logger.
func WithCompiler(c *compiler.Compiler) Option {
	return func(s *Scheduler) {
		s.compiler = c
	}
}

// WithRunRecorder persists every ExecutePlan run.
func WithRunRecorder(r RunRecorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithTokenGenerator sets the run token source. Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(s *Scheduler) {
		s.tokens = g
	}
}

// New creates an empty Scheduler.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		index:      graph.NewIndex(),
		boundaries: boundary.NewManager(),
		nodes:      make(map[graph.NodeRef]node.Node),
		compiled:   make(map[string]*compiler.CompiledSubgraph),
		tokens:     UUIDv7Generator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.compiler == nil {
		c, err := compiler.New(compiler.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.compiler = c
	}
	return s, nil
}

// Generation returns the current structural generation.
func (s *Scheduler) Generation() uint64 {
	return s.gen.Current()
}

// Compiler returns the subgraph compiler.
func (s *Scheduler) Compiler() *compiler.Compiler {
	return s.compiler
}

// Register adds n under ref, replacing any previous node. The node takes
// part in ordering even without edges.
func (s *Scheduler) Register(ref graph.NodeRef, n node.Node) error {
	if n == nil {
		return fmt.Errorf("register %s: nil node", ref)
	}
	if err := s.index.AddNode(ref); err != nil {
		return err
	}
	s.mu.Lock()
	s.nodes[ref] = n
	s.mu.Unlock()
	s.gen.Bump()
	return nil
}

// AddNode tracks ref for ordering without an implementation.
func (s *Scheduler) AddNode(ref graph.NodeRef) error {
	if err := s.index.AddNode(ref); err != nil {
		return err
	}
	s.gen.Bump()
	return nil
}

// AddDependency records that dependent requires dependency. Idempotent.
// Fails with ErrCodeInvalidEdge for a self-dependency.
func (s *Scheduler) AddDependency(dependent, dependency graph.NodeRef) error {
	if err := s.index.AddDependency(dependent, dependency); err != nil {
		return err
	}
	s.gen.Bump()
	return nil
}

// RemoveDependency removes the edge and any wires along it.
func (s *Scheduler) RemoveDependency(dependent, dependency graph.NodeRef) bool {
	removed := s.index.RemoveDependency(dependent, dependency)
	if removed {
		s.gen.Bump()
	}
	return removed
}

// Connect wires an output port to an input port, adding the implied
// dependency. When both nodes are registered the ports must be declared.
func (s *Scheduler) Connect(w graph.Wire) error {
	s.mu.RLock()
	from, fromOK := s.nodes[w.From]
	to, toOK := s.nodes[w.To]
	s.mu.RUnlock()

	if fromOK && !from.Describe().HasOutput(w.FromPort) {
		return graph.NewInvalidEdgeError(w.To, w.From,
			fmt.Sprintf("%s has no output port %q", w.From, w.FromPort))
	}
	if toOK && !to.Describe().HasInput(w.ToPort) {
		return graph.NewInvalidEdgeError(w.To, w.From,
			fmt.Sprintf("%s has no input port %q", w.To, w.ToPort))
	}
	if err := s.index.AddWire(w); err != nil {
		return err
	}
	s.gen.Bump()
	return nil
}

// RemoveNode removes ref, its edges, and its boundary membership. A boundary
// left empty is removed. Returns false if ref was unknown.
func (s *Scheduler) RemoveNode(ref graph.NodeRef) bool {
	if !s.index.RemoveNode(ref) {
		return false
	}
	s.mu.Lock()
	delete(s.nodes, ref)
	s.mu.Unlock()
	if id := s.boundaries.Forget(ref); id != "" {
		s.logger.Debug("node removed from boundary", "node", ref, "boundary", id)
	}
	s.gen.Bump()
	return true
}

// Node returns the node registered under ref.
func (s *Scheduler) Node(ref graph.NodeRef) (node.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[ref]
	return n, ok
}

// Nodes returns every known node reference in first-seen order.
func (s *Scheduler) Nodes() []graph.NodeRef {
	return s.index.Nodes()
}

// Dependencies returns what ref depends on, in insertion order.
func (s *Scheduler) Dependencies(ref graph.NodeRef) []graph.NodeRef {
	return s.index.Dependencies(ref)
}

// Dependents returns what depends on ref.
func (s *Scheduler) Dependents(ref graph.NodeRef) []graph.NodeRef {
	return s.index.Dependents(ref)
}

// Edges returns every dependency edge.
func (s *Scheduler) Edges() []graph.Edge {
	return s.index.Edges()
}

// Wires returns every port-level wire.
func (s *Scheduler) Wires() []graph.Wire {
	return s.index.Wires()
}

// GetExecutionOrder returns a deterministic topological order of all nodes.
// Fails with ErrCodeCyclicDependency; a cyclic graph never yields a partial
// order.
func (s *Scheduler) GetExecutionOrder() ([]graph.NodeRef, error) {
	return s.index.ExecutionOrder()
}

// AssignLayers groups an execution order into layers.
func (s *Scheduler) AssignLayers(order []graph.NodeRef) (*graph.Layering, error) {
	return s.index.AssignLayers(order)
}

// GetLayers computes the order and its layering under one consistent view.
func (s *Scheduler) GetLayers() (*graph.Layering, error) {
	return s.index.Layers()
}

// Cycles reports every strongly connected component with more than one node.
func (s *Scheduler) Cycles() []graph.CycleReport {
	return s.index.Cycles()
}

// MarkCompilationBoundary records nodes as a named compilable unit. It has no
// effect on ordering until CompileMarkedSubgraphs runs.
func (s *Scheduler) MarkCompilationBoundary(nodes []graph.NodeRef, id string) error {
	if _, err := s.boundaries.Mark(nodes, id); err != nil {
		return err
	}
	s.gen.Bump()
	return nil
}

// UnmarkCompilationBoundary removes a boundary and drops its compiled
// artifact from the cache.
func (s *Scheduler) UnmarkCompilationBoundary(id string) error {
	if err := s.boundaries.Unmark(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.compiled, id)
	s.mu.Unlock()
	s.compiler.Cache().Invalidate(id)
	s.gen.Bump()
	return nil
}

// BoundaryOf returns the boundary that owns ref.
func (s *Scheduler) BoundaryOf(ref graph.NodeRef) (string, bool) {
	return s.boundaries.BoundaryOf(ref)
}

// Boundaries returns the active boundaries in mark order.
func (s *Scheduler) Boundaries() []boundary.Boundary {
	return s.boundaries.List()
}

// ValidateBoundaries reports boundary problems without compiling.
func (s *Scheduler) ValidateBoundaries() []*graph.Error {
	return boundary.Validate(s.index.Snapshot(), s.boundaries.List())
}

// CompileMarkedSubgraphs compiles every boundary against the current graph.
//
// Artifacts come from the compiler cache when the boundary's manifest is
// unchanged, so calling this twice without structural changes returns the
// same artifacts. The compiled set is replaced only if every boundary
// compiles. Changes to the graph after this call are not picked up until it
// is called again.
func (s *Scheduler) CompileMarkedSubgraphs(ctx context.Context) ([]*compiler.CompiledSubgraph, error) {
	snap := s.index.Snapshot()
	condensed, err := boundary.Condense(snap, s.boundaries.List())
	if err != nil {
		return nil, err
	}

	var out []*compiler.CompiledSubgraph
	compiled := make(map[string]*compiler.CompiledSubgraph)
	for _, unit := range condensed.Units {
		if !unit.IsBoundary() {
			continue
		}
		cs, err := s.compiler.Compile(ctx, unit, snap, s.Node)
		if err != nil {
			return nil, err
		}
		compiled[unit.Boundary] = cs
		out = append(out, cs)
	}

	s.mu.Lock()
	s.compiled = compiled
	s.mu.Unlock()
	s.gen.Bump()
	return out, nil
}

// Compiled returns the artifact from the last CompileMarkedSubgraphs for a
// boundary.
func (s *Scheduler) Compiled(id string) (*compiler.CompiledSubgraph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.compiled[id]
	return cs, ok
}
