package testutil

import (
	"sync"

	"github.com/roach88/nodegraph/internal/graph"
)

// ExecutionLog records node executions in the order they happen.
//
// Each entry is stamped from a logical clock, so the first Record returns 1.
// Reset makes the log reusable across scenario runs.
//
// Thread-safety: all methods are safe for concurrent use.
type ExecutionLog struct {
	mu      sync.Mutex
	seq     int64
	entries []graph.NodeRef
	stamps  map[graph.NodeRef]int64
}

// NewExecutionLog creates an empty log.
func NewExecutionLog() *ExecutionLog {
	return &ExecutionLog{stamps: make(map[graph.NodeRef]int64)}
}

// Record appends ref and returns its sequence number.
func (l *ExecutionLog) Record(ref graph.NodeRef) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.entries = append(l.entries, ref)
	l.stamps[ref] = l.seq
	return l.seq
}

// Order returns the recorded refs in execution order.
func (l *ExecutionLog) Order() []graph.NodeRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]graph.NodeRef, len(l.entries))
	copy(out, l.entries)
	return out
}

// Seq returns the sequence number of ref's most recent execution, or 0.
func (l *ExecutionLog) Seq(ref graph.NodeRef) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stamps[ref]
}

// Count returns how many times ref ran.
func (l *ExecutionLog) Count(ref graph.NodeRef) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e == ref {
			n++
		}
	}
	return n
}

// Reset clears the log. The next Record returns 1.
func (l *ExecutionLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq = 0
	l.entries = nil
	clear(l.stamps)
}
