package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nodegraph/internal/ir"
)

func TestBuiltins_Kinds(t *testing.T) {
	assert.Equal(t,
		[]string{"concat", "const", "fail", "identity", "scale", "sum"},
		Builtins().Kinds())
}

func TestConst(t *testing.T) {
	n, err := Builtins().Build(KindConst, ir.IRObject{"value": ir.IRInt(7)})
	require.NoError(t, err)

	out, err := n.Execute(context.Background(), ir.IRObject{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"value": ir.IRInt(7)}, out)

	d := n.Describe()
	assert.Empty(t, d.Inputs)
	assert.Equal(t, []string{"value"}, d.Outputs)
}

func TestConst_RequiresValue(t *testing.T) {
	_, err := Builtins().Build(KindConst, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.value is required")
}

func TestSum(t *testing.T) {
	n, err := Builtins().Build(KindSum, ir.IRObject{
		"inputs": ir.IRArray{ir.IRString("x"), ir.IRString("y"), ir.IRString("z")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, n.Describe().Inputs)

	// Unwired inputs are absent and count as zero.
	out, err := n.Execute(context.Background(), ir.IRObject{"x": ir.IRInt(2), "z": ir.IRInt(5)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(7), out["value"])

	_, err = n.Execute(context.Background(), ir.IRObject{"x": ir.IRString("2")})
	require.Error(t, err)
}

func TestSum_DefaultPorts(t *testing.T) {
	n, err := Builtins().Build(KindSum, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, n.Describe().Inputs)
}

func TestSum_RejectsDuplicatePorts(t *testing.T) {
	_, err := Builtins().Build(KindSum, ir.IRObject{
		"inputs": ir.IRArray{ir.IRString("a"), ir.IRString("a")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate port")
}

func TestConcat(t *testing.T) {
	n, err := Builtins().Build(KindConcat, ir.IRObject{"sep": ir.IRString("-")})
	require.NoError(t, err)

	out, err := n.Execute(context.Background(), ir.IRObject{"a": ir.IRString("x"), "b": ir.IRString("y")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("x-y"), out["value"])
}

func TestScale(t *testing.T) {
	n, err := Builtins().Build(KindScale, ir.IRObject{"factor": ir.IRInt(3)})
	require.NoError(t, err)

	out, err := n.Execute(context.Background(), ir.IRObject{"value": ir.IRInt(4)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(12), out["value"])

	_, err = Builtins().Build(KindScale, ir.IRObject{"factor": ir.IRString("3")})
	require.Error(t, err)
}

func TestIdentity_MissingInputIsNull(t *testing.T) {
	n, err := Builtins().Build(KindIdentity, nil)
	require.NoError(t, err)

	out, err := n.Execute(context.Background(), ir.IRObject{})
	require.NoError(t, err)
	assert.Equal(t, ir.IRNull{}, out["value"])
}

func TestFail(t *testing.T) {
	n, err := Builtins().Build(KindFail, ir.IRObject{"message": ir.IRString("boom")})
	require.NoError(t, err)

	_, err = n.Execute(context.Background(), nil)
	require.ErrorIs(t, err, ErrNodeFailed)
	assert.Contains(t, err.Error(), "boom")
}

func TestRegistry_UnknownKind(t *testing.T) {
	_, err := Builtins().Build("nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown node kind "nope"`)
}

func TestRegistry_DuplicateKind(t *testing.T) {
	r := NewRegistry()
	f := func(ir.IRObject) (Node, error) { return nil, nil }
	require.NoError(t, r.Register("k", f))
	require.Error(t, r.Register("k", f))
	require.Error(t, r.Register("", f))
}

func TestDescriptor_IR(t *testing.T) {
	d := Descriptor{Kind: "sum", Inputs: []string{"a"}, Outputs: []string{"value"}}
	got := d.IR()

	assert.Equal(t, ir.IRString("sum"), got["kind"])
	assert.Equal(t, ir.IRArray{ir.IRString("a")}, got["inputs"])
	assert.Equal(t, ir.IRObject{}, got["config"])
	assert.True(t, d.HasInput("a"))
	assert.False(t, d.HasInput("value"))
	assert.True(t, d.HasOutput("value"))
}
