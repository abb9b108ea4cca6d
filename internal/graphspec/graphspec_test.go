package graphspec

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
	"github.com/roach88/nodegraph/internal/scheduler"
)

var graphsDir = filepath.Join("..", "..", "testdata", "graphs")

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_PipelineFormatsAgree(t *testing.T) {
	want, err := Load(filepath.Join(graphsDir, "pipeline.yaml"))
	require.NoError(t, err)

	for _, name := range []string{"pipeline.cue", "pipeline"} {
		t.Run(name, func(t *testing.T) {
			got, err := Load(filepath.Join(graphsDir, name))
			require.NoError(t, err)
			assert.Equal(t, want.Nodes, got.Nodes)
			assert.Equal(t, want.Wires, got.Wires)
			assert.Equal(t, want.Boundaries, got.Boundaries)
			assert.Empty(t, got.Deps)
		})
	}
}

func TestLoad_PipelineContents(t *testing.T) {
	g, err := Load(filepath.Join(graphsDir, "pipeline.yaml"))
	require.NoError(t, err)

	names := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		names[i] = n.Name
	}
	assert.Equal(t, []string{"src", "offset", "triple", "total", "out"}, names)
	assert.Equal(t, ir.IRObject{"factor": ir.IRInt(3)}, g.Nodes[2].Config)
	assert.Equal(t, ir.IRObject{}, g.Nodes[3].Config)
	assert.Equal(t, []BoundarySpec{{ID: "hot", Members: []string{"triple", "total"}}}, g.Boundaries)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		path    func() string
		code    string
		message string
	}{
		{
			name:    "missing path",
			path:    func() string { return filepath.Join(dir, "nope.yaml") },
			code:    ErrCodeNotFound,
			message: "graph not found",
		},
		{
			name:    "unsupported extension",
			path:    func() string { return writeFile(t, dir, "graph.json", "{}") },
			code:    ErrCodeLoadFailed,
			message: "unsupported graph file extension",
		},
		{
			name:    "empty directory",
			path:    func() string { return t.TempDir() },
			code:    ErrCodeNoFiles,
			message: "no CUE files found",
		},
		{
			name:    "yaml unknown field",
			path:    func() string { return writeFile(t, dir, "typo.yaml", "nodes: []\nwire: []\n") },
			code:    ErrCodeLoadFailed,
			message: "field wire not found",
		},
		{
			name: "yaml float config",
			path: func() string {
				return writeFile(t, dir, "float.yaml", "nodes:\n  - {name: a, kind: const, config: {value: 1.5}}\n")
			},
			code:    ErrCodeInvalidValue,
			message: "floats are not allowed",
		},
		{
			name:    "cue float config",
			path:    func() string { return writeFile(t, dir, "float.cue", `nodes: a: {kind: "const", config: value: 1.5}`) },
			code:    ErrCodeInvalidValue,
			message: "floats are not allowed",
		},
		{
			name:    "cue missing kind",
			path:    func() string { return writeFile(t, dir, "nokind.cue", `nodes: a: {config: value: 1}`) },
			code:    ErrCodeInvalidRef,
			message: "kind is required",
		},
		{
			name:    "cue syntax error",
			path:    func() string { return writeFile(t, dir, "broken.cue", `nodes: {`) },
			code:    ErrCodeBuildFailed,
			message: "building CUE value",
		},
		{
			name:    "cue incomplete config",
			path:    func() string { return writeFile(t, dir, "open.cue", `nodes: a: {kind: "const", config: value: int}`) },
			code:    ErrCodeInvalidValue,
			message: "value must be concrete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path())
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoad_CUEErrorCarriesPosition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "float.cue", "nodes: {\n\ta: {kind: \"const\", config: value: 1.5}\n}\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float.cue:2:")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	g := &Graph{
		Source: "inline",
		Nodes: []NodeSpec{
			{Name: "a", Kind: "const"},
			{Name: "a", Kind: "const"},
			{Name: "", Kind: "const"},
			{Name: "b"},
		},
		Deps:       []DepSpec{{Node: "a", Needs: "ghost"}, {Node: "a"}},
		Wires:      []WireSpec{{From: "a", To: "b.value"}, {From: "a.value", To: "zed.value"}},
		Boundaries: []BoundarySpec{{ID: "x", Members: []string{"a"}}, {ID: "x"}, {Members: []string{"b"}}},
	}

	errs := g.Validate()
	codes := make([]string, len(errs))
	for i, err := range errs {
		codes[i] = CodeOf(err)
	}
	assert.Equal(t, []string{
		ErrCodeDuplicateNode,
		ErrCodeInvalidNode,
		ErrCodeInvalidNode,
		ErrCodeUnknownNode,
		ErrCodeInvalidRef,
		ErrCodeInvalidRef,
		ErrCodeUnknownNode,
		ErrCodeInvalidBoundary,
		ErrCodeInvalidBoundary,
	}, codes)
	assert.Contains(t, errs[3].Error(), `inline: E103: deps[0]: unknown node "ghost"`)
}

func TestParsePortRef(t *testing.T) {
	ref, port, err := ParsePortRef("stage.one.value")
	require.NoError(t, err)
	assert.Equal(t, graph.NodeRef("stage.one"), ref)
	assert.Equal(t, "value", port)

	for _, bad := range []string{"", "value", ".value", "node."} {
		_, _, err := ParsePortRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestApply_PipelineRuns(t *testing.T) {
	for _, name := range []string{"pipeline.yaml", "pipeline.cue", "pipeline"} {
		t.Run(name, func(t *testing.T) {
			g, err := Load(filepath.Join(graphsDir, name))
			require.NoError(t, err)

			s, err := g.NewScheduler(node.Builtins(), scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			require.NoError(t, err)

			order, err := s.GetExecutionOrder()
			require.NoError(t, err)
			assert.Equal(t, []graph.NodeRef{"src", "offset", "triple", "total", "out"}, order)

			_, err = s.CompileMarkedSubgraphs(context.Background())
			require.NoError(t, err)
			plan, err := s.GetExecutionPlan()
			require.NoError(t, err)
			require.Equal(t, 4, plan.Len())
			assert.Equal(t, "hot", plan.Tasks[2].Label())

			res, err := s.ExecutePlan(context.Background(), scheduler.ExecOptions{Mode: scheduler.ModeParallel})
			require.NoError(t, err)
			assert.Equal(t, ir.IRInt(16), res.Values["out.value"])
		})
	}
}

func TestApply_Errors(t *testing.T) {
	reg := node.Builtins()
	s, err := scheduler.New(scheduler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	g := &Graph{Nodes: []NodeSpec{{Name: "a", Kind: "mystery"}}}
	err = g.Apply(s, reg)
	assert.ErrorContains(t, err, `node a: unknown node kind "mystery"`)

	g = &Graph{
		Nodes: []NodeSpec{{Name: "a", Kind: node.KindIdentity}, {Name: "b", Kind: node.KindIdentity}},
		Wires: []WireSpec{{From: "a.value", To: "b.nope"}},
	}
	err = g.Apply(s, reg)
	require.ErrorIs(t, err, graph.ErrInvalidEdge)
	assert.Contains(t, err.Error(), "wire a.value -> b.nope")

	g = &Graph{
		Nodes:      []NodeSpec{{Name: "c", Kind: node.KindIdentity}},
		Boundaries: []BoundarySpec{{ID: "e", Members: []string{}}},
	}
	assert.ErrorIs(t, g.Apply(s, reg), graph.ErrEmptyBoundary)
}
