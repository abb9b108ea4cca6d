package graphspec

import (
	"fmt"
	"strings"

	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
	"github.com/roach88/nodegraph/internal/scheduler"
)

// Graph is a loaded graph file.
type Graph struct {
	// Source is the file or directory the graph was loaded from.
	Source string `json:"source"`

	Nodes      []NodeSpec     `json:"nodes"`
	Deps       []DepSpec      `json:"deps,omitempty"`
	Wires      []WireSpec     `json:"wires,omitempty"`
	Boundaries []BoundarySpec `json:"boundaries,omitempty"`
}

// NodeSpec declares one node.
type NodeSpec struct {
	Name   string      `json:"name"`
	Kind   string      `json:"kind"`
	Config ir.IRObject `json:"config"`
}

// DepSpec declares that Node must run after Needs, without passing data.
type DepSpec struct {
	Node  string `json:"node" yaml:"node"`
	Needs string `json:"needs" yaml:"needs"`
}

// WireSpec connects an output port to an input port. Both ends are written
// "<node>.<port>".
type WireSpec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// BoundarySpec declares a compilation boundary.
type BoundarySpec struct {
	ID      string   `json:"id" yaml:"id"`
	Members []string `json:"members" yaml:"members"`
}

// ParsePortRef splits "<node>.<port>" at the last dot.
func ParsePortRef(s string) (graph.NodeRef, string, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("port reference %q must be <node>.<port>", s)
	}
	return graph.NodeRef(s[:i]), s[i+1:], nil
}

// Wire returns w as a graph.Wire.
func (w WireSpec) Wire() (graph.Wire, error) {
	from, fromPort, err := ParsePortRef(w.From)
	if err != nil {
		return graph.Wire{}, err
	}
	to, toPort, err := ParsePortRef(w.To)
	if err != nil {
		return graph.Wire{}, err
	}
	return graph.Wire{From: from, FromPort: fromPort, To: to, ToPort: toPort}, nil
}

// Validate checks the graph's internal consistency: unique node names,
// declared kinds, well-formed port references, and references to declared
// nodes only. It does not check kinds against a registry or the graph for
// cycles.
func (g *Graph) Validate() []error {
	var errs []error
	add := func(code, field, format string, args ...any) {
		errs = append(errs, &LoadError{Code: code, Field: field, Message: fmt.Sprintf(format, args...), File: g.Source})
	}

	declared := make(map[string]bool, len(g.Nodes))
	for i, n := range g.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		switch {
		case n.Name == "":
			add(ErrCodeInvalidNode, field, "name is required")
			continue
		case declared[n.Name]:
			add(ErrCodeDuplicateNode, field, "node %q declared twice", n.Name)
			continue
		}
		declared[n.Name] = true
		if n.Kind == "" {
			add(ErrCodeInvalidNode, field, "node %q: kind is required", n.Name)
		}
	}

	known := func(field, name string) {
		if !declared[name] {
			add(ErrCodeUnknownNode, field, "unknown node %q", name)
		}
	}
	for i, d := range g.Deps {
		field := fmt.Sprintf("deps[%d]", i)
		if d.Node == "" || d.Needs == "" {
			add(ErrCodeInvalidRef, field, "node and needs are required")
			continue
		}
		known(field, d.Node)
		known(field, d.Needs)
	}
	for i, w := range g.Wires {
		field := fmt.Sprintf("wires[%d]", i)
		wire, err := w.Wire()
		if err != nil {
			add(ErrCodeInvalidRef, field, "%v", err)
			continue
		}
		known(field, string(wire.From))
		known(field, string(wire.To))
	}
	ids := make(map[string]bool, len(g.Boundaries))
	for i, b := range g.Boundaries {
		field := fmt.Sprintf("boundaries[%d]", i)
		if b.ID == "" {
			add(ErrCodeInvalidBoundary, field, "id is required")
			continue
		}
		if ids[b.ID] {
			add(ErrCodeInvalidBoundary, field, "boundary %q declared twice", b.ID)
			continue
		}
		ids[b.ID] = true
		for _, m := range b.Members {
			known(field, m)
		}
	}
	return errs
}

// Apply registers the graph with s, building nodes from reg. Nodes are
// registered first, then wires, deps and boundaries, each in declaration
// order. Apply stops at the first error; s may be partially populated.
func (g *Graph) Apply(s *scheduler.Scheduler, reg *node.Registry) error {
	for _, spec := range g.Nodes {
		n, err := reg.Build(spec.Kind, spec.Config)
		if err != nil {
			return fmt.Errorf("node %s: %w", spec.Name, err)
		}
		if err := s.Register(graph.NodeRef(spec.Name), n); err != nil {
			return fmt.Errorf("node %s: %w", spec.Name, err)
		}
	}
	for _, spec := range g.Wires {
		w, err := spec.Wire()
		if err != nil {
			return err
		}
		if err := s.Connect(w); err != nil {
			return fmt.Errorf("wire %s -> %s: %w", spec.From, spec.To, err)
		}
	}
	for _, spec := range g.Deps {
		if err := s.AddDependency(graph.NodeRef(spec.Node), graph.NodeRef(spec.Needs)); err != nil {
			return fmt.Errorf("dep %s -> %s: %w", spec.Node, spec.Needs, err)
		}
	}
	for _, spec := range g.Boundaries {
		members := make([]graph.NodeRef, len(spec.Members))
		for i, m := range spec.Members {
			members[i] = graph.NodeRef(m)
		}
		if err := s.MarkCompilationBoundary(members, spec.ID); err != nil {
			return fmt.Errorf("boundary %s: %w", spec.ID, err)
		}
	}
	return nil
}

// NewScheduler creates a scheduler with opts and applies g to it.
func (g *Graph) NewScheduler(reg *node.Registry, opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := g.Apply(s, reg); err != nil {
		return nil, err
	}
	return s, nil
}
