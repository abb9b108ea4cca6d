package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_Golden(t *testing.T) {
	out, err := execute(t, NewPlanCommand(&RootOptions{Format: "text"}), graphPath("pipeline.cue"))
	require.NoError(t, err)
	assertGolden(t, "plan_pipeline", normalizeHashes(out))
}

func TestPlan_JSON(t *testing.T) {
	out, err := execute(t, NewPlanCommand(&RootOptions{Format: "json"}), graphPath("pipeline.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   PlanReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	report := resp.Data

	assert.Len(t, report.Hash, 64)
	assert.Equal(t, 3, report.Layers)
	require.Len(t, report.Tasks, 4)

	hot := report.Tasks[2]
	assert.Equal(t, "compiled", hot.Kind)
	assert.Equal(t, "hot", hot.Label)
	assert.Equal(t, []string{"triple", "total"}, hot.Covers)
	assert.Equal(t, []int{0, 1}, hot.Deps)
	assert.Len(t, hot.Key, 64)

	assert.Equal(t, []int{2}, report.Tasks[3].Deps)
	require.NotNil(t, report.Cache)
	assert.Equal(t, uint64(1), report.Cache.Misses)
}

func TestPlan_SameHashAcrossFormats(t *testing.T) {
	hashOf := func(graph string) string {
		out, err := execute(t, NewPlanCommand(&RootOptions{Format: "json"}), graphPath(graph))
		require.NoError(t, err)
		var resp struct {
			Data PlanReport `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp.Data.Hash
	}
	assert.Equal(t, hashOf("pipeline.cue"), hashOf("pipeline.yaml"))
}

func TestPlan_StoredManifestIsLoaded(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "plan.db")

	planOnce := func() PlanReport {
		out, err := execute(t, NewPlanCommand(&RootOptions{Format: "json"}), "--db", dbPath, graphPath("pipeline.cue"))
		require.NoError(t, err)
		var resp struct {
			Data PlanReport `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp.Data
	}

	first := planOnce()
	assert.Equal(t, uint64(0), first.Cache.Loads)

	second := planOnce()
	assert.Equal(t, uint64(1), second.Cache.Loads, "second process finds the manifest in the database")
	assert.Equal(t, first.Hash, second.Hash)
}

func TestPlan_UnschedulableBoundary(t *testing.T) {
	out, err := execute(t, NewPlanCommand(&RootOptions{Format: "text"}), graphPath("tangled.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [INVALID_BOUNDARY_TOPOLOGY]")
}
