package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
)

func TestCompile_PortsMatchCrossingWires(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "B", "A")

	cs, err := newTestCompiler(t).Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	assert.Equal(t, "ab", cs.Identifier)
	assert.Equal(t, []graph.NodeRef{"A", "B"}, cs.Members, "internal order, not mark order")
	assert.Equal(t, graph.NodeRef("A"), cs.Entry())
	assert.Equal(t, []string{"A.value", "B.y"}, cs.InputPorts())
	assert.Equal(t, []string{"B.value"}, cs.OutputPorts())
	assert.Equal(t, "src", cs.Inputs[0].Source)
	assert.Len(t, cs.Key, 64)
}

func TestCompile_Execute(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	cs, err := newTestCompiler(t).Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	out, err := cs.Execute(context.Background(), ir.IRObject{
		"A.value": ir.IRInt(2),
		"B.y":     ir.IRInt(2),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"B.value": ir.IRInt(8)}, out)
}

func TestCompile_CacheHitIsReferenceIdentical(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	c := newTestCompiler(t)

	first, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Entries: 1}, c.Cache().Stats())
}

func TestCompile_KeyChangesWithConfiguration(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	c := newTestCompiler(t)

	before, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	f.set(t, node.Builtins(), "A", node.KindScale, ir.IRObject{"factor": ir.IRInt(4)})
	after, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	assert.NotEqual(t, before.Key, after.Key)
	latest, ok := c.Cache().Lookup("ab")
	require.True(t, ok)
	assert.Same(t, after, latest)
}

func TestCompile_KeyIncludesIdentifier(t *testing.T) {
	f := newFixture(t)
	c := newTestCompiler(t)

	u1, snap := f.unit(t, "one", "A", "B")
	u2, _ := f.unit(t, "two", "A", "B")
	cs1, err := c.Compile(context.Background(), u1, snap, f.resolve)
	require.NoError(t, err)
	cs2, err := c.Compile(context.Background(), u2, snap, f.resolve)
	require.NoError(t, err)

	assert.NotEqual(t, cs1.Key, cs2.Key)
}

func TestCompile_FailedExecutionKeepsArtifact(t *testing.T) {
	f := newFixture(t)
	f.set(t, node.Builtins(), "B", node.KindFail, ir.IRObject{"message": ir.IRString("boom")})
	// fail declares only "value" as input; rewire B accordingly.
	f.index = graph.NewIndex()
	require.NoError(t, f.index.AddWire(graph.Wire{From: "src", FromPort: "value", To: "A", ToPort: "value"}))
	require.NoError(t, f.index.AddWire(graph.Wire{From: "A", FromPort: "value", To: "B", ToPort: "value"}))

	unit, snap := f.unit(t, "ab", "A", "B")
	c := newTestCompiler(t)
	cs, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	_, err = cs.Execute(context.Background(), ir.IRObject{"A.value": ir.IRInt(1)})
	require.Error(t, err)
	assert.True(t, graph.IsSubgraphExecutionError(err))
	assert.ErrorIs(t, err, node.ErrNodeFailed)

	var ge *graph.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, graph.NodeRef("B"), ge.Node)
	assert.Equal(t, "ab", ge.Boundary)

	again, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	assert.Same(t, cs, again)
	assert.Equal(t, uint64(1), c.Cache().Stats().Misses)
}

func TestCompile_CanceledContext(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	cs, err := newTestCompiler(t).Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cs.Execute(ctx, ir.IRObject{})
	assert.True(t, graph.IsSubgraphExecutionError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompile_StoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	ms := newMemStore()

	first := newTestCompiler(t, WithStore(ms))
	synthesized, err := first.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	assert.Equal(t, 1, ms.saves)

	second := newTestCompiler(t, WithStore(ms))
	loaded, err := second.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	assert.Equal(t, synthesized.Key, loaded.Key)
	assert.Equal(t, synthesized.Payload, loaded.Payload)
	assert.Equal(t, Stats{Loads: 1, Entries: 1}, second.Cache().Stats())
	assert.Equal(t, 1, ms.saves, "a load is not saved again")

	out, err := loaded.Execute(context.Background(), ir.IRObject{"A.value": ir.IRInt(1), "B.y": ir.IRInt(1)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(4), out["B.value"])
}

func TestCompile_StoreMismatchRecompiles(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	ms := newMemStore()

	cs, err := newTestCompiler(t, WithStore(ms)).Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	ms.payloads[cs.Key] = []byte(`{"identifier":"tampered"}`)

	c := newTestCompiler(t, WithStore(ms))
	_, err = c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	assert.Equal(t, Stats{Misses: 1, Entries: 1}, c.Cache().Stats())
}

func TestCompile_MissingNode(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	delete(f.nodes, "B")

	_, err := newTestCompiler(t).Compile(context.Background(), unit, snap, f.resolve)
	require.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestCompile_UndeclaredPort(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.index.AddWire(graph.Wire{From: "src", FromPort: "value", To: "A", ToPort: "bogus"}))
	unit, snap := f.unit(t, "ab", "A", "B")

	_, err := newTestCompiler(t).Compile(context.Background(), unit, snap, f.resolve)
	require.ErrorIs(t, err, graph.ErrInvalidEdge)
	assert.Contains(t, err.Error(), `no input port "bogus"`)
}

func TestCache_InvalidateAndEviction(t *testing.T) {
	f := newFixture(t)
	c := newTestCompiler(t, WithCacheSize(1))

	u1, snap := f.unit(t, "one", "A", "B")
	_, err := c.Compile(context.Background(), u1, snap, f.resolve)
	require.NoError(t, err)

	assert.True(t, c.Cache().Invalidate("one"))
	assert.False(t, c.Cache().Invalidate("one"))
	_, ok := c.Cache().Lookup("one")
	assert.False(t, ok)

	_, err = c.Compile(context.Background(), u1, snap, f.resolve)
	require.NoError(t, err)
	u2, _ := f.unit(t, "two", "A", "B")
	_, err = c.Compile(context.Background(), u2, snap, f.resolve)
	require.NoError(t, err)

	_, ok = c.Cache().Lookup("one")
	assert.False(t, ok, "evicted entry leaves no identifier mapping")
	_, ok = c.Cache().Lookup("two")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Cache().Stats().Entries)
}

func TestNewCache_InvalidSize(t *testing.T) {
	_, err := NewCache(0)
	require.Error(t, err)
}

func TestCompile_RelinksReregisteredNode(t *testing.T) {
	f := newFixture(t)
	unit, snap := f.unit(t, "ab", "A", "B")
	c := newTestCompiler(t)

	first, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	// Same descriptor, new behavior.
	old := f.nodes["A"]
	f.nodes["A"] = &node.Func{
		Desc: old.Describe(),
		Fn: func(context.Context, ir.IRObject) (ir.IRObject, error) {
			return ir.IRObject{"value": ir.IRInt(100)}, nil
		},
	}

	second, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Relinks: 1, Entries: 1}, c.Cache().Stats())

	out, err := second.Execute(context.Background(), ir.IRObject{"A.value": ir.IRInt(2), "B.y": ir.IRInt(2)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(102), out["B.value"])

	third, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	assert.Same(t, second, third, "relinked artifact is cached")

	cached, ok := c.Cache().Lookup("ab")
	require.True(t, ok)
	assert.Same(t, second, cached)
}

func TestCompile_SharedCompilerKeepsGraphsApart(t *testing.T) {
	c := newTestCompiler(t)
	f1, f2 := newFixture(t), newFixture(t)
	calls := 0
	f2.nodes["B"] = &node.Func{
		Desc: f2.nodes["B"].Describe(),
		Fn: func(context.Context, ir.IRObject) (ir.IRObject, error) {
			calls++
			return ir.IRObject{"value": ir.IRInt(0)}, nil
		},
	}

	u1, snap1 := f1.unit(t, "ab", "A", "B")
	cs1, err := c.Compile(context.Background(), u1, snap1, f1.resolve)
	require.NoError(t, err)
	u2, snap2 := f2.unit(t, "ab", "A", "B")
	cs2, err := c.Compile(context.Background(), u2, snap2, f2.resolve)
	require.NoError(t, err)
	require.Equal(t, cs1.Key, cs2.Key)

	in := ir.IRObject{"A.value": ir.IRInt(1), "B.y": ir.IRInt(1)}
	out, err := cs1.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(4), out["B.value"])
	assert.Equal(t, 0, calls)

	out, err = cs2.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(0), out["B.value"])
	assert.Equal(t, 1, calls)
}

func TestCompile_StoreHitResolvesUnnormalizedRefs(t *testing.T) {
	// "e" followed by a combining acute accent; canonical JSON stores it NFC.
	const decomposed graph.NodeRef = "e\u0301"
	reg := node.Builtins()
	f := &fixture{index: graph.NewIndex(), nodes: make(map[graph.NodeRef]node.Node)}
	f.set(t, reg, decomposed, node.KindScale, ir.IRObject{"factor": ir.IRInt(3)})
	f.set(t, reg, "B", node.KindIdentity, nil)
	require.NoError(t, f.index.AddWire(graph.Wire{From: decomposed, FromPort: "value", To: "B", ToPort: "value"}))
	require.NoError(t, f.index.AddWire(graph.Wire{From: "B", FromPort: "value", To: "sink", ToPort: "value"}))
	unit, snap := f.unit(t, "b", decomposed, "B")
	ms := newMemStore()

	_, err := newTestCompiler(t, WithStore(ms)).Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)

	c := newTestCompiler(t, WithStore(ms))
	loaded, err := c.Compile(context.Background(), unit, snap, f.resolve)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c.Cache().Stats().Loads)
	assert.Equal(t, []graph.NodeRef{decomposed, "B"}, loaded.Members)

	out, err := loaded.Execute(context.Background(), ir.IRObject{string(decomposed) + ".value": ir.IRInt(3)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(9), out["B.value"])
}
