package graph

// CycleReport describes one strongly connected component of more than one
// node. Unlike ExecutionOrder, which stops at the first cycle, Cycles reports
// all of them so a caller can fix a graph in one pass.
type CycleReport struct {
	Members []NodeRef `json:"members"` // SCC members, first-seen order
	Path    []NodeRef `json:"path"`    // one cycle through the SCC, first node repeated
}

// Cycles finds every cycle in the index using Tarjan's algorithm.
// An acyclic index returns an empty slice. Self-loops cannot exist because
// AddDependency rejects them.
func (x *Index) Cycles() []CycleReport {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rank := make(map[NodeRef]int, x.nodes.len())
	for i, ref := range x.nodes.items {
		rank[ref] = i
	}

	reports := []CycleReport{}
	for _, scc := range tarjanSCC(x.nodes.items, x.depsLocked) {
		if len(scc) < 2 {
			continue
		}
		members := sortByRank(scc, rank)
		reports = append(reports, CycleReport{
			Members: members,
			Path:    reconstructCyclePath(members, x.depsLocked),
		})
	}
	return reports
}

// tarjanSCC returns the strongly connected components reachable from roots.
func tarjanSCC(roots []NodeRef, deps func(NodeRef) []NodeRef) [][]NodeRef {
	var (
		index   = 0
		stack   []NodeRef
		indices = make(map[NodeRef]int)
		lowlink = make(map[NodeRef]int)
		onStack = make(map[NodeRef]bool)
		sccs    [][]NodeRef
	)

	var strongConnect func(NodeRef)
	strongConnect = func(v NodeRef) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps(v) {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []NodeRef
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, ref := range roots {
		if _, visited := indices[ref]; !visited {
			strongConnect(ref)
		}
	}
	return sccs
}

func sortByRank(refs []NodeRef, rank map[NodeRef]int) []NodeRef {
	out := make([]NodeRef, len(refs))
	copy(out, refs)
	// insertion sort; SCCs are small
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && rank[out[j]] < rank[out[j-1]]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// reconstructCyclePath finds the shortest cycle through the SCC's first
// member with a breadth-first walk restricted to SCC members.
func reconstructCyclePath(scc []NodeRef, deps func(NodeRef) []NodeRef) []NodeRef {
	if len(scc) == 0 {
		return nil
	}
	inSCC := make(map[NodeRef]bool, len(scc))
	for _, ref := range scc {
		inSCC[ref] = true
	}

	start := scc[0]
	parent := map[NodeRef]NodeRef{start: start}
	queue := []NodeRef{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range deps(current) {
			if dep == start {
				var rev []NodeRef
				for n := current; n != start; n = parent[n] {
					rev = append(rev, n)
				}
				path := []NodeRef{start}
				for i := len(rev) - 1; i >= 0; i-- {
					path = append(path, rev[i])
				}
				return append(path, start)
			}
			if _, seen := parent[dep]; !seen && inSCC[dep] {
				parent[dep] = current
				queue = append(queue, dep)
			}
		}
	}
	return []NodeRef{start}
}
