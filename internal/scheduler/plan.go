package scheduler

import (
	"fmt"

	"github.com/roach88/nodegraph/internal/boundary"
	"github.com/roach88/nodegraph/internal/compiler"
	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
)

// TaskKind tags an ExecutionTask.
type TaskKind string

const (
	// TaskNode runs one node directly.
	TaskNode TaskKind = "node"

	// TaskCompiled runs a whole boundary through its compiled entry point.
	TaskCompiled TaskKind = "compiled"
)

// Binding feeds one task input from a produced value. Source is the
// "<node>.<port>" key of the producing output; Port is the task's own input
// name (a node port, or a compiled port name).
type Binding struct {
	Port   string `json:"port"`
	Source string `json:"source"`
}

// ExecutionTask is one step of a plan: either a single node or a compiled
// subgraph covering every member of a boundary.
type ExecutionTask struct {
	Kind     TaskKind                   `json:"kind"`
	Node     graph.NodeRef              `json:"node,omitempty"`
	Compiled *compiler.CompiledSubgraph `json:"-"`
	Layer    int                        `json:"layer"`
	Inputs   []Binding                  `json:"inputs"`

	// Deps holds plan positions of tasks this one waits for.
	Deps []int `json:"deps"`
}

// Label names the task: the node, or the boundary id.
func (t *ExecutionTask) Label() string {
	if t.Kind == TaskCompiled {
		return t.Compiled.Identifier
	}
	return string(t.Node)
}

// Covers returns the nodes the task executes.
func (t *ExecutionTask) Covers() []graph.NodeRef {
	if t.Kind == TaskCompiled {
		return t.Compiled.Members
	}
	return []graph.NodeRef{t.Node}
}

// Plan is an ordered task list. Tasks are in topological order; Layers groups
// plan positions for per-layer parallel dispatch.
//
// A Plan is immutable and reused until the scheduler's generation moves.
type Plan struct {
	Tasks      []ExecutionTask
	Layers     [][]int
	Hash       string
	Generation uint64
}

// Len returns the number of tasks.
func (p *Plan) Len() int {
	return len(p.Tasks)
}

// TaskFor returns the position of the task covering ref.
func (p *Plan) TaskFor(ref graph.NodeRef) (int, bool) {
	for i := range p.Tasks {
		for _, covered := range p.Tasks[i].Covers() {
			if covered == ref {
				return i, true
			}
		}
	}
	return 0, false
}

// GetExecutionPlan returns the cached plan, rebuilding it if any structural
// change happened since it was built.
func (s *Scheduler) GetExecutionPlan() (*Plan, error) {
	s.mu.RLock()
	p := s.plan
	s.mu.RUnlock()
	if p != nil && p.Generation == s.gen.Current() {
		return p, nil
	}
	return s.UpdateExecutionStrategy()
}

// UpdateExecutionStrategy rebuilds the plan from the current graph.
//
// The graph is condensed so each boundary is one unit. A boundary whose
// compiled artifact still matches the graph becomes one compiled task at the
// unit's position. A boundary that was never compiled, or whose artifact is
// stale, runs its members as single-node tasks. Every node appears in
// exactly one task.
func (s *Scheduler) UpdateExecutionStrategy() (*Plan, error) {
	gen := s.gen.Current()
	snap := s.index.Snapshot()
	condensed, err := boundary.Condense(snap, s.boundaries.List())
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	compiled := make(map[string]*compiler.CompiledSubgraph, len(s.compiled))
	for id, cs := range s.compiled {
		compiled[id] = cs
	}
	s.mu.RUnlock()

	var tasks []ExecutionTask
	for _, unit := range condensed.Units {
		if !unit.IsBoundary() {
			tasks = append(tasks, s.nodeTask(unit.Members[0], snap))
			continue
		}
		cs, ok := compiled[unit.Boundary]
		if ok && s.current(cs, unit, snap) {
			tasks = append(tasks, compiledTask(cs))
			continue
		}
		if ok {
			s.logger.Warn("compiled subgraph is stale, running members individually", "boundary", unit.Boundary)
		} else {
			s.logger.Warn("boundary not compiled, running members individually", "boundary", unit.Boundary)
		}
		for _, ref := range unit.Members {
			tasks = append(tasks, s.nodeTask(ref, snap))
		}
	}

	p, err := assemble(tasks, snap)
	if err != nil {
		return nil, err
	}
	p.Generation = gen

	s.mu.Lock()
	s.plan = p
	s.mu.Unlock()
	s.logger.Debug("execution plan rebuilt", "tasks", len(p.Tasks), "layers", len(p.Layers), "generation", gen)
	return p, nil
}

// current reports whether cs still matches the boundary as it is now,
// including the node instances registered for its members.
func (s *Scheduler) current(cs *compiler.CompiledSubgraph, unit boundary.Unit, snap *graph.Snapshot) bool {
	m, err := compiler.BuildManifest(unit, snap, s.Node)
	if err != nil {
		return false
	}
	payload, err := m.Canonical()
	if err != nil {
		return false
	}
	return compiler.Key(payload) == cs.Key && cs.LinkedTo(m, s.Node)
}

func (s *Scheduler) nodeTask(ref graph.NodeRef, snap *graph.Snapshot) ExecutionTask {
	t := ExecutionTask{Kind: TaskNode, Node: ref, Inputs: []Binding{}}
	for _, w := range snap.Wires() {
		if w.To == ref {
			t.Inputs = append(t.Inputs, Binding{Port: w.ToPort, Source: compiler.PortName(w.From, w.FromPort)})
		}
	}
	return t
}

func compiledTask(cs *compiler.CompiledSubgraph) ExecutionTask {
	t := ExecutionTask{Kind: TaskCompiled, Compiled: cs, Inputs: make([]Binding, len(cs.Inputs))}
	for i, in := range cs.Inputs {
		t.Inputs[i] = Binding{Port: in.Port, Source: compiler.PortName(graph.NodeRef(in.Source), in.SourcePort)}
	}
	return t
}

// assemble derives task dependencies and layers, and hashes the plan.
func assemble(tasks []ExecutionTask, snap *graph.Snapshot) (*Plan, error) {
	owner := make(map[graph.NodeRef]int)
	for i := range tasks {
		for _, ref := range tasks[i].Covers() {
			if prev, dup := owner[ref]; dup {
				return nil, fmt.Errorf("plan: node %s covered by tasks %d and %d", ref, prev, i)
			}
			owner[ref] = i
		}
	}

	positions := make([]int, len(tasks))
	for i := range tasks {
		positions[i] = i
		seen := map[int]bool{i: true}
		tasks[i].Deps = []int{}
		for _, ref := range tasks[i].Covers() {
			for _, dep := range snap.Dependencies(ref) {
				j := owner[dep]
				if !seen[j] {
					seen[j] = true
					tasks[i].Deps = append(tasks[i].Deps, j)
				}
			}
		}
	}

	levels, layers, err := graph.AssignLevels(positions, func(i int) []int { return tasks[i].Deps })
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	for i := range tasks {
		tasks[i].Layer = levels[i]
	}

	hash, err := ir.HashCanonical(ir.DomainPlan, planIR(tasks))
	if err != nil {
		return nil, err
	}
	return &Plan{Tasks: tasks, Layers: layers, Hash: hash}, nil
}

func planIR(tasks []ExecutionTask) ir.IRArray {
	arr := make(ir.IRArray, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		deps := make(ir.IRArray, len(t.Deps))
		for k, d := range t.Deps {
			deps[k] = ir.IRInt(d)
		}
		entry := ir.IRObject{
			"kind":  ir.IRString(t.Kind),
			"label": ir.IRString(t.Label()),
			"layer": ir.IRInt(t.Layer),
			"deps":  deps,
		}
		if t.Kind == TaskCompiled {
			entry["key"] = ir.IRString(t.Compiled.Key)
		}
		arr[i] = entry
	}
	return arr
}
