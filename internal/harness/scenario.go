package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nodegraph/internal/scheduler"
)

// Scenario defines a conformance test scenario: a graph file, how to run
// it, and what the schedule and run must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path to a CUE or YAML graph, relative to the scenario
	// file when loaded with LoadScenario.
	Graph string `yaml:"graph"`

	// Mode and Policy select the execution mode and failure policy.
	// Empty values use the scheduler defaults (sequential, abort).
	Mode    string `yaml:"mode,omitempty"`
	Policy  string `yaml:"policy,omitempty"`
	Workers int    `yaml:"workers,omitempty"`

	// ExpectError is the error code the scenario must end with, such as
	// NODE_EXECUTION or CYCLIC_DEPENDENCY. Empty means the run must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the schedule, the trace and the recorded run.
	Assertions []Assertion `yaml:"assertions"`

	// RunToken is the fixed run token for deterministic traces.
	// If empty, defaults to "test-run-default".
	RunToken string `yaml:"run_token,omitempty"`
}

// Assertion validates one aspect of a scenario result.
type Assertion struct {
	// Type selects the check:
	// - "order": Nodes appear in this relative order in the execution order
	// - "layer": Node sits in Layer
	// - "task_status": Task ended with Status
	// - "task_count": exactly Count tasks ended with Status
	// - "value": the produced output Port equals Expect
	// - "recorded": the stored run (or stored Task, when set) has Status
	Type string `yaml:"type"`

	Nodes  []string `yaml:"nodes,omitempty"`
	Node   string   `yaml:"node,omitempty"`
	Layer  int      `yaml:"layer,omitempty"`
	Task   string   `yaml:"task,omitempty"`
	Status string   `yaml:"status,omitempty"`
	Count  int      `yaml:"count,omitempty"`
	Port   string   `yaml:"port,omitempty"`
	Expect any      `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOrder      = "order"
	AssertLayer      = "layer"
	AssertTaskStatus = "task_status"
	AssertTaskCount  = "task_count"
	AssertValue      = "value"
	AssertRecorded   = "recorded"
)

var validStatuses = map[string]bool{
	string(scheduler.StatusSucceeded): true,
	string(scheduler.StatusFailed):    true,
	string(scheduler.StatusSkipped):   true,
}

// LoadScenario reads and parses a scenario YAML file. The graph path is
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}
	if _, err := os.Stat(scenario.Graph); err != nil {
		return nil, fmt.Errorf("invalid scenario: graph file not found: %s", scenario.Graph)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	switch scheduler.Mode(s.Mode) {
	case "", scheduler.ModeSequential, scheduler.ModeParallel:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	switch scheduler.FailurePolicy(s.Policy) {
	case "", scheduler.PolicyAbort, scheduler.PolicyContinue:
	default:
		return fmt.Errorf("unknown policy %q", s.Policy)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOrder:
		if len(a.Nodes) < 2 {
			return fmt.Errorf("assertions[%d]: order needs at least two nodes", index)
		}
	case AssertLayer:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for layer", index)
		}
		if a.Layer < 0 {
			return fmt.Errorf("assertions[%d]: layer must be non-negative", index)
		}
	case AssertTaskStatus:
		if a.Task == "" {
			return fmt.Errorf("assertions[%d]: task is required for task_status", index)
		}
		if !validStatuses[a.Status] {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertTaskCount:
		if !validStatuses[a.Status] {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for task_count", index)
		}
	case AssertValue:
		if a.Port == "" {
			return fmt.Errorf("assertions[%d]: port is required for value", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for value", index)
		}
	case AssertRecorded:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for recorded", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
