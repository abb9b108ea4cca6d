package compiler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nodegraph/internal/boundary"
	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
)

// fixture is a small wired graph:
//
//	src(const 2) -> A(scale x3) -> B(sum x,y) -> sink(identity)
//	src ------------------------> B.y
type fixture struct {
	index *graph.Index
	nodes map[graph.NodeRef]node.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := node.Builtins()
	f := &fixture{index: graph.NewIndex(), nodes: make(map[graph.NodeRef]node.Node)}

	f.set(t, reg, "src", node.KindConst, ir.IRObject{"value": ir.IRInt(2)})
	f.set(t, reg, "A", node.KindScale, ir.IRObject{"factor": ir.IRInt(3)})
	f.set(t, reg, "B", node.KindSum, ir.IRObject{"inputs": ir.IRArray{ir.IRString("x"), ir.IRString("y")}})
	f.set(t, reg, "sink", node.KindIdentity, nil)

	for _, w := range []graph.Wire{
		{From: "src", FromPort: "value", To: "A", ToPort: "value"},
		{From: "A", FromPort: "value", To: "B", ToPort: "x"},
		{From: "src", FromPort: "value", To: "B", ToPort: "y"},
		{From: "B", FromPort: "value", To: "sink", ToPort: "value"},
	} {
		require.NoError(t, f.index.AddWire(w))
	}
	return f
}

func (f *fixture) set(t *testing.T, reg *node.Registry, ref graph.NodeRef, kind string, cfg ir.IRObject) {
	t.Helper()
	n, err := reg.Build(kind, cfg)
	require.NoError(t, err)
	f.nodes[ref] = n
}

func (f *fixture) resolve(ref graph.NodeRef) (node.Node, bool) {
	n, ok := f.nodes[ref]
	return n, ok
}

// unit condenses the fixture with one boundary and returns its unit.
func (f *fixture) unit(t *testing.T, id string, members ...graph.NodeRef) (boundary.Unit, *graph.Snapshot) {
	t.Helper()
	snap := f.index.Snapshot()
	c, err := boundary.Condense(snap, []boundary.Boundary{{ID: id, Members: members}})
	require.NoError(t, err)
	for _, u := range c.Units {
		if u.Boundary == id {
			return u, snap
		}
	}
	t.Fatalf("boundary %s not in condensed graph", id)
	return boundary.Unit{}, nil
}

func newTestCompiler(t *testing.T, opts ...Option) *Compiler {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := New(opts...)
	require.NoError(t, err)
	return c
}

// memStore is an in-memory ManifestStore.
type memStore struct {
	mu       sync.Mutex
	payloads map[string][]byte
	saves    int
}

func newMemStore() *memStore {
	return &memStore{payloads: make(map[string][]byte)}
}

func (s *memStore) LoadManifest(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payloads[key]
	return p, ok, nil
}

func (s *memStore) SaveManifest(_ context.Context, key, _ string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[key] = payload
	s.saves++
	return nil
}
