package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nodegraph/internal/ir"
)

// TraceSnapshot captures the schedule and trace of a scenario execution.
// Content hashes are left out so snapshots survive manifest format changes.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunToken     string       `json:"run_token,omitempty"`
	Order        []string     `json:"order"`
	Layers       [][]string   `json:"layers"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	layers := make([]any, len(s.Layers))
	for i, layer := range s.Layers {
		layers[i] = stringList(layer)
	}

	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":    event.Seq,
			"task":   event.Task,
			"kind":   event.Kind,
			"layer":  event.Layer,
			"status": event.Status,
		}
		if len(event.Outputs) > 0 {
			eventMap["outputs"] = event.Outputs
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"order":         stringList(s.Order),
		"layers":        layers,
		"trace":         traceList,
	}
	if s.RunToken != "" {
		result["run_token"] = s.RunToken
	}
	return result
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return nil, err
	}
	compareGolden(t, scenario.Name, traceJSON)
	return result, nil
}

// Snapshot returns the canonical JSON snapshot of a scenario result. These
// are the bytes stored in golden files.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     scenario.RunToken,
		Order:        result.Order,
		Layers:       result.Layers,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Order:        result.Order,
		Layers:       result.Layers,
		Trace:        result.Trace,
	}
	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}
	compareGolden(t, scenarioName, traceJSON)
	return nil
}

func compareGolden(t *testing.T, name string, traceJSON []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
}
