package graph

import "fmt"

// Layering is the result of layer assignment.
//
// Layers is densely indexed from 0: a node in layer L > 0 has a dependency
// in layer L-1, so no layer between 0 and the maximum can be empty. Nodes
// within a layer keep their relative execution order.
type Layering struct {
	Of     map[NodeRef]int
	Layers [][]NodeRef
}

// LayerOf returns the layer index of ref.
func (l *Layering) LayerOf(ref NodeRef) (int, bool) {
	i, ok := l.Of[ref]
	return i, ok
}

// AssignLevels computes layer(n) = 0 when n has no dependencies, otherwise
// 1 + max(layer(dep)), in one pass over order. Every dependency must appear
// in order before its dependents; otherwise an error is returned.
func AssignLevels[K comparable](order []K, deps func(K) []K) (map[K]int, [][]K, error) {
	level := make(map[K]int, len(order))
	var layers [][]K
	for _, n := range order {
		l := 0
		for _, dep := range deps(n) {
			dl, ok := level[dep]
			if !ok {
				return nil, nil, fmt.Errorf("assign layers: %v is ordered before its dependency %v", n, dep)
			}
			l = max(l, dl+1)
		}
		level[n] = l
		if l >= len(layers) {
			layers = append(layers, make([][]K, l+1-len(layers))...)
		}
		layers[l] = append(layers[l], n)
	}
	return level, layers, nil
}

// AssignLayers groups an execution order into layers of mutually
// independent nodes. order must be a valid order for the current index,
// typically the result of ExecutionOrder.
func (x *Index) AssignLayers(order []NodeRef) (*Layering, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, ref := range order {
		if !x.nodes.contains(ref) {
			return nil, NewUnknownNodeError(ref)
		}
	}
	of, layers, err := AssignLevels(order, x.depsLocked)
	if err != nil {
		return nil, err
	}
	return &Layering{Of: of, Layers: layers}, nil
}

// Layers computes the execution order and its layering under a single read
// lock, so both reflect the same index state.
func (x *Index) Layers() (*Layering, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	order, cycle := TopoSort(x.nodes.items, x.depsLocked)
	if cycle != nil {
		return nil, NewCycleError(cycle)
	}
	of, layers, err := AssignLevels(order, x.depsLocked)
	if err != nil {
		return nil, err
	}
	return &Layering{Of: of, Layers: layers}, nil
}
