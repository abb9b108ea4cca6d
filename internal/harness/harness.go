package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/nodegraph/internal/compiler"
	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/graphspec"
	"github.com/roach88/nodegraph/internal/node"
	"github.com/roach88/nodegraph/internal/scheduler"
	"github.com/roach88/nodegraph/internal/store"
	"github.com/roach88/nodegraph/internal/testutil"
)

// Harness holds the per-scenario collaborators.
type Harness struct {
	store  *store.Store
	sched  *scheduler.Scheduler
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database with a fixed run
// token, so traces are reproducible.
//
// Execution flow:
// 1. Load the graph file and build a scheduler over the builtin node kinds
// 2. Record the execution order and layers
// 3. Compile marked boundaries and execute the plan
// 4. Check the expected error and evaluate assertions
//
// The returned error is reserved for infrastructure problems (unreadable
// graph, database failure). Scheduling and execution errors are part of the
// result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	g, err := graphspec.Load(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	comp, err := compiler.New(compiler.WithLogger(logger), compiler.WithStore(st))
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}
	sched, err := g.NewScheduler(node.Builtins(),
		scheduler.WithLogger(logger),
		scheduler.WithCompiler(comp),
		scheduler.WithRunRecorder(st),
		scheduler.WithTokenGenerator(testutil.NewFixedTokenGenerator(scenario.RunToken)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	h := &Harness{store: st, sched: sched, logger: logger}
	ctx := context.Background()

	result := NewResult()
	runErr := h.execute(ctx, scenario, result)
	checkExpectedError(result, scenario.ExpectError, runErr)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// execute fills result stage by stage and returns the first scheduling or
// execution error.
func (h *Harness) execute(ctx context.Context, scenario *Scenario, result *Result) error {
	order, err := h.sched.GetExecutionOrder()
	if err != nil {
		return err
	}
	result.Order = refStrings(order)

	layering, err := h.sched.GetLayers()
	if err != nil {
		return err
	}
	for _, layer := range layering.Layers {
		result.Layers = append(result.Layers, refStrings(layer))
	}

	if _, err := h.sched.CompileMarkedSubgraphs(ctx); err != nil {
		return err
	}

	run, err := h.sched.ExecutePlan(ctx, scheduler.ExecOptions{
		Mode:    scheduler.Mode(scenario.Mode),
		Policy:  scheduler.FailurePolicy(scenario.Policy),
		Workers: scenario.Workers,
	})
	if run == nil {
		return err
	}

	result.RunID = run.RunID
	result.Values = run.Values
	for _, task := range run.Record().Results {
		result.AddTaskTrace(TraceEvent{
			Task:    task.Label,
			Kind:    task.Kind,
			Layer:   task.Layer,
			Status:  task.Status,
			Outputs: task.Outputs,
			Error:   task.Error,
		})
	}
	h.logger.Debug("scenario run finished", "run", run.RunID, "tasks", len(result.Trace))
	return err
}

func checkExpectedError(result *Result, expected string, err error) {
	switch {
	case expected == "" && err != nil:
		result.AddError(fmt.Sprintf("unexpected error: %v", err))
	case expected != "" && err == nil:
		result.AddError(fmt.Sprintf("expected error %s, got success", expected))
	case expected != "" && string(graph.CodeOf(err)) != expected:
		result.AddError(fmt.Sprintf("expected error %s, got %v", expected, err))
	}
}

func refStrings(refs []graph.NodeRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = string(ref)
	}
	return out
}
