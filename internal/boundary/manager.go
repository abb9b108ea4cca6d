// Package boundary tracks compilation boundaries: named node subsets that the
// compiler fuses into one executable unit.
//
// Marking is declarative. It never touches the dependency index; topology is
// checked when boundaries are condensed for compilation or planning.
package boundary

import (
	"fmt"
	"sync"

	"github.com/roach88/nodegraph/internal/graph"
)

// Boundary is a named node subset.
type Boundary struct {
	ID string

	// Members in mark order, deduplicated.
	Members []graph.NodeRef
}

// Contains reports whether ref is a member.
func (b Boundary) Contains(ref graph.NodeRef) bool {
	for _, m := range b.Members {
		if m == ref {
			return true
		}
	}
	return false
}

// Manager owns the set of active boundaries.
//
// A node belongs to at most one boundary. Identifiers are unique.
//
// Thread-safety: Manager is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	byID  map[string]*Boundary
	ids   []string // mark order
	owner map[graph.NodeRef]string
}

// NewManager creates an empty boundary manager.
func NewManager() *Manager {
	return &Manager{
		byID:  make(map[string]*Boundary),
		owner: make(map[graph.NodeRef]string),
	}
}

// Mark registers nodes as boundary id.
//
// Fails with ErrCodeDuplicateIdentifier if id is taken, ErrCodeEmptyBoundary
// if nodes is empty (or id is blank), and ErrCodeInvalidBoundaryTopology if
// any node already belongs to another boundary. On failure nothing changes.
func (m *Manager) Mark(nodes []graph.NodeRef, id string) (Boundary, error) {
	if id == "" {
		return Boundary{}, &graph.Error{
			Code:    graph.ErrCodeEmptyBoundary,
			Message: "boundary identifier is empty",
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[id]; exists {
		return Boundary{}, &graph.Error{
			Code:     graph.ErrCodeDuplicateIdentifier,
			Message:  "boundary identifier already registered",
			Boundary: id,
		}
	}
	if len(nodes) == 0 {
		return Boundary{}, &graph.Error{
			Code:     graph.ErrCodeEmptyBoundary,
			Message:  "boundary has no nodes",
			Boundary: id,
		}
	}

	members := make([]graph.NodeRef, 0, len(nodes))
	seen := make(map[graph.NodeRef]bool, len(nodes))
	for _, ref := range nodes {
		if ref == "" {
			return Boundary{}, &graph.Error{
				Code:     graph.ErrCodeInvalidEdge,
				Message:  "empty node reference",
				Boundary: id,
			}
		}
		if seen[ref] {
			continue
		}
		if other, owned := m.owner[ref]; owned {
			return Boundary{}, &graph.Error{
				Code:     graph.ErrCodeInvalidBoundaryTopology,
				Message:  fmt.Sprintf("node already belongs to boundary %q", other),
				Node:     ref,
				Boundary: id,
			}
		}
		seen[ref] = true
		members = append(members, ref)
	}

	b := &Boundary{ID: id, Members: members}
	m.byID[id] = b
	m.ids = append(m.ids, id)
	for _, ref := range members {
		m.owner[ref] = id
	}
	return b.copy(), nil
}

// Unmark removes boundary id. Fails with ErrCodeUnknownBoundary if absent.
func (m *Manager) Unmark(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.byID[id]
	if !ok {
		return unknownBoundary(id)
	}
	for _, ref := range b.Members {
		delete(m.owner, ref)
	}
	delete(m.byID, id)
	for i, other := range m.ids {
		if other == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

// Forget drops ref from whichever boundary holds it. A boundary left with no
// members is removed. Returns the affected boundary id, or "".
func (m *Manager) Forget(ref graph.NodeRef) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.owner[ref]
	if !ok {
		return ""
	}
	delete(m.owner, ref)
	b := m.byID[id]
	for i, member := range b.Members {
		if member == ref {
			b.Members = append(b.Members[:i:i], b.Members[i+1:]...)
			break
		}
	}
	if len(b.Members) == 0 {
		delete(m.byID, id)
		for i, other := range m.ids {
			if other == id {
				m.ids = append(m.ids[:i], m.ids[i+1:]...)
				break
			}
		}
	}
	return id
}

// Get returns a copy of boundary id.
func (m *Manager) Get(id string) (Boundary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.byID[id]
	if !ok {
		return Boundary{}, false
	}
	return b.copy(), true
}

// List returns copies of all boundaries in mark order.
func (m *Manager) List() []Boundary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Boundary, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.byID[id].copy())
	}
	return out
}

// BoundaryOf returns the id of the boundary that owns ref.
func (m *Manager) BoundaryOf(ref graph.NodeRef) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.owner[ref]
	return id, ok
}

// Len returns the number of active boundaries.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

func (b *Boundary) copy() Boundary {
	members := make([]graph.NodeRef, len(b.Members))
	copy(members, b.Members)
	return Boundary{ID: b.ID, Members: members}
}

func unknownBoundary(id string) *graph.Error {
	return &graph.Error{
		Code:     graph.ErrCodeUnknownBoundary,
		Message:  "boundary is not registered",
		Boundary: id,
	}
}
