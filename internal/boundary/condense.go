package boundary

import (
	"errors"
	"slices"
	"strings"

	"github.com/roach88/nodegraph/internal/graph"
)

// Unit is one node of the condensed graph: a whole boundary, or a single
// node that belongs to no boundary.
type Unit struct {
	// Boundary is the owning boundary id, or "" for a singleton.
	Boundary string

	// Members in internal topological order. A singleton has one member.
	Members []graph.NodeRef
}

// IsBoundary reports whether the unit stands for a boundary.
func (u Unit) IsBoundary() bool {
	return u.Boundary != ""
}

func (u Unit) label() string {
	if u.IsBoundary() {
		return "boundary:" + u.Boundary
	}
	return string(u.Members[0])
}

type unitKey struct {
	boundary string
	node     graph.NodeRef
}

// Condensed is the dependency graph with every boundary collapsed into a
// single unit, in topological order.
type Condensed struct {
	Units []Unit

	// Order is the node-level execution order the units were derived from.
	Order []graph.NodeRef
}

// Condense collapses each boundary into one unit and orders the result.
//
// Errors:
//   - ErrCodeUnknownNode if a boundary names a node missing from snap
//   - ErrCodeCyclicDependency if the node graph itself has a cycle
//   - ErrCodeInvalidBoundaryTopology if collapsing creates a cycle, meaning a
//     path leaves a boundary and re-enters it, or two boundaries depend on
//     each other
//
// Units are visited with the same policy as the node-level order: roots in
// first-seen order of their first member, dependencies in insertion order. A
// graph without boundaries condenses to exactly its execution order.
func Condense(snap *graph.Snapshot, boundaries []Boundary) (*Condensed, error) {
	byID := make(map[string]Boundary, len(boundaries))
	owner := make(map[graph.NodeRef]string)
	for _, b := range boundaries {
		for _, ref := range b.Members {
			if !snap.Has(ref) {
				e := graph.NewUnknownNodeError(ref)
				e.Boundary = b.ID
				return nil, e
			}
			owner[ref] = b.ID
		}
		byID[b.ID] = b
	}

	order, err := snap.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	keyOf := func(ref graph.NodeRef) unitKey {
		if id, ok := owner[ref]; ok {
			return unitKey{boundary: id}
		}
		return unitKey{node: ref}
	}
	membersOf := func(k unitKey) []graph.NodeRef {
		if k.boundary != "" {
			return byID[k.boundary].Members
		}
		return []graph.NodeRef{k.node}
	}

	var roots []unitKey
	seenRoot := make(map[unitKey]bool)
	for _, ref := range snap.Nodes {
		k := keyOf(ref)
		if !seenRoot[k] {
			seenRoot[k] = true
			roots = append(roots, k)
		}
	}

	deps := func(k unitKey) []unitKey {
		var out []unitKey
		seen := map[unitKey]bool{k: true}
		for _, member := range membersOf(k) {
			for _, dep := range snap.Dependencies(member) {
				dk := keyOf(dep)
				if !seen[dk] {
					seen[dk] = true
					out = append(out, dk)
				}
			}
		}
		return out
	}

	keys, cycle := graph.TopoSort(roots, deps)
	if cycle != nil {
		return nil, condensedCycleError(cycle, membersOf)
	}

	pos := make(map[graph.NodeRef]int, len(order))
	for i, ref := range order {
		pos[ref] = i
	}

	units := make([]Unit, 0, len(keys))
	for _, k := range keys {
		if k.boundary == "" {
			units = append(units, Unit{Members: []graph.NodeRef{k.node}})
			continue
		}
		members := append([]graph.NodeRef(nil), byID[k.boundary].Members...)
		slices.SortFunc(members, func(a, b graph.NodeRef) int { return pos[a] - pos[b] })
		units = append(units, Unit{Boundary: k.boundary, Members: members})
	}
	return &Condensed{Units: units, Order: order}, nil
}

func condensedCycleError(cycle []unitKey, membersOf func(unitKey) []graph.NodeRef) *graph.Error {
	labels := make([]string, len(cycle))
	var first string
	for i, k := range cycle {
		u := Unit{Boundary: k.boundary, Members: membersOf(k)}
		labels[i] = u.label()
		if first == "" && k.boundary != "" {
			first = k.boundary
		}
	}
	return &graph.Error{
		Code:     graph.ErrCodeInvalidBoundaryTopology,
		Message:  "boundary cannot be scheduled as an atomic unit: " + strings.Join(labels, " -> "),
		Boundary: first,
	}
}

// Validate reports every boundary problem it can find without stopping at
// the first: unknown members for each boundary, then the condensation check.
// Node-level cycles are left to graph.Index.Cycles and suppress the
// condensation check.
func Validate(snap *graph.Snapshot, boundaries []Boundary) []*graph.Error {
	var problems []*graph.Error
	for _, b := range boundaries {
		for _, ref := range b.Members {
			if !snap.Has(ref) {
				e := graph.NewUnknownNodeError(ref)
				e.Boundary = b.ID
				problems = append(problems, e)
			}
		}
	}
	if len(problems) > 0 {
		return problems
	}
	if _, err := snap.ExecutionOrder(); err != nil {
		return nil
	}
	if _, err := Condense(snap, boundaries); err != nil {
		var ge *graph.Error
		if errors.As(err, &ge) {
			problems = append(problems, ge)
		}
	}
	return problems
}
