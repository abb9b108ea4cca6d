package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
)

// KindRecording is the descriptor kind of recording nodes.
const KindRecording = "recording"

// RecordingNode returns a node that logs ref when it runs and outputs
// "value": its own name followed by the values of its inputs, e.g.
// "A(B(C))". Inputs are read in the given order.
func RecordingNode(log *ExecutionLog, ref graph.NodeRef, inputs ...string) node.Node {
	if inputs == nil {
		inputs = []string{}
	}
	return &node.Func{
		Desc: node.Descriptor{
			Kind:    KindRecording,
			Inputs:  inputs,
			Outputs: []string{"value"},
			Config:  ir.IRObject{"name": ir.IRString(ref)},
		},
		Fn: func(_ context.Context, in ir.IRObject) (ir.IRObject, error) {
			log.Record(ref)
			s := string(ref)
			var args string
			for _, p := range inputs {
				if v, ok := in[p].(ir.IRString); ok {
					if args != "" {
						args += ","
					}
					args += string(v)
				}
			}
			if args != "" {
				s += "(" + args + ")"
			}
			return ir.IRObject{"value": ir.IRString(s)}, nil
		},
	}
}

// FailingNode returns a node that logs ref and fails with err.
func FailingNode(log *ExecutionLog, ref graph.NodeRef, err error, inputs ...string) node.Node {
	if inputs == nil {
		inputs = []string{}
	}
	return &node.Func{
		Desc: node.Descriptor{
			Kind:    KindRecording,
			Inputs:  inputs,
			Outputs: []string{"value"},
			Config:  ir.IRObject{"name": ir.IRString(ref), "fails": ir.IRBool(true)},
		},
		Fn: func(context.Context, ir.IRObject) (ir.IRObject, error) {
			log.Record(ref)
			return nil, err
		},
	}
}

// Barrier blocks callers until n of them have arrived.
type Barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	all     chan struct{}
}

// NewBarrier creates a barrier for n parties.
func NewBarrier(n int) *Barrier {
	return &Barrier{n: n, all: make(chan struct{})}
}

// Wait arrives at the barrier and waits for the rest, up to timeout.
func (b *Barrier) Wait(ctx context.Context, timeout time.Duration) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.all)
	}
	b.mu.Unlock()

	select {
	case <-b.all:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("barrier: %d of %d arrived", b.arrivedCount(), b.n)
	}
}

func (b *Barrier) arrivedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived
}

// BarrierNode returns a recording node that waits at b before finishing.
// Only concurrent dispatch lets every party of b through.
func BarrierNode(log *ExecutionLog, ref graph.NodeRef, b *Barrier) node.Node {
	inner := RecordingNode(log, ref)
	return &node.Func{
		Desc: inner.Describe(),
		Fn: func(ctx context.Context, in ir.IRObject) (ir.IRObject, error) {
			if err := b.Wait(ctx, 5*time.Second); err != nil {
				return nil, err
			}
			return inner.Execute(ctx, in)
		},
	}
}
