package graph

// DFS states.
const (
	unvisited uint8 = iota
	inProgress
	done
)

type dfsFrame[K comparable] struct {
	node K
	deps []K
	next int
}

// TopoSort orders the nodes reachable from roots so that every dependency
// precedes its dependents.
//
// Roots are visited in the given order and dependencies in the order deps
// returns them; nodes are emitted post-order. The traversal is iterative.
//
// If a cycle is found, order is nil and cycle holds the nodes on it in
// depends-on direction, with the first node repeated at the end. No partial
// order is ever returned alongside a cycle.
func TopoSort[K comparable](roots []K, deps func(K) []K) (order []K, cycle []K) {
	state := make(map[K]uint8, len(roots))
	order = make([]K, 0, len(roots))

	for _, root := range roots {
		if state[root] != unvisited {
			continue
		}
		state[root] = inProgress
		stack := []dfsFrame[K]{{node: root, deps: deps(root)}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.deps) {
				dep := top.deps[top.next]
				top.next++
				switch state[dep] {
				case inProgress:
					return nil, cyclePath(stack, dep)
				case unvisited:
					state[dep] = inProgress
					stack = append(stack, dfsFrame[K]{node: dep, deps: deps(dep)})
				}
				continue
			}
			state[top.node] = done
			order = append(order, top.node)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}

// cyclePath extracts the cycle closed by revisiting dep from the DFS stack.
func cyclePath[K comparable](stack []dfsFrame[K], dep K) []K {
	start := 0
	for i, f := range stack {
		if f.node == dep {
			start = i
			break
		}
	}
	path := make([]K, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.node)
	}
	return append(path, dep)
}

// ExecutionOrder returns a deterministic topological order of every
// registered node, dependencies first. Fails with ErrCodeCyclicDependency if
// the graph has a cycle.
//
// The read lock is held for the entire sort.
func (x *Index) ExecutionOrder() ([]NodeRef, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	order, cycle := TopoSort(x.nodes.items, x.depsLocked)
	if cycle != nil {
		return nil, NewCycleError(cycle)
	}
	return order, nil
}
