package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycles_AcyclicReturnsEmpty(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.AddDependency("A", "B"))
	assert.Empty(t, x.Cycles())
	assert.NotNil(t, x.Cycles())
}

func TestCycles_ReportsEveryCycle(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.AddDependency("A", "B"))
	require.NoError(t, x.AddDependency("B", "A"))
	require.NoError(t, x.AddDependency("X", "Y"))
	require.NoError(t, x.AddDependency("Y", "Z"))
	require.NoError(t, x.AddDependency("Z", "X"))
	require.NoError(t, x.AddDependency("ok", "A"))

	reports := x.Cycles()
	require.Len(t, reports, 2)

	byFirst := map[NodeRef]CycleReport{}
	for _, r := range reports {
		byFirst[r.Members[0]] = r
	}
	assert.Equal(t, []NodeRef{"A", "B"}, byFirst["A"].Members)
	assert.Equal(t, []NodeRef{"A", "B", "A"}, byFirst["A"].Path)
	assert.Equal(t, []NodeRef{"X", "Y", "Z"}, byFirst["X"].Members)
	assert.Equal(t, []NodeRef{"X", "Y", "Z", "X"}, byFirst["X"].Path)
}

func TestCycles_ShortestPathThroughSCC(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.AddDependency("A", "B"))
	require.NoError(t, x.AddDependency("B", "C"))
	require.NoError(t, x.AddDependency("C", "A"))
	require.NoError(t, x.AddDependency("B", "A"))

	reports := x.Cycles()
	require.Len(t, reports, 1)
	assert.Equal(t, []NodeRef{"A", "B", "A"}, reports[0].Path)
}
