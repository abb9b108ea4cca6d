package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/nodegraph/internal/compiler"
	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
	"github.com/roach88/nodegraph/internal/store"
)

// Mode selects how a plan is dispatched.
type Mode string

const (
	// ModeSequential runs tasks one at a time in plan order.
	ModeSequential Mode = "sequential"

	// ModeParallel runs each layer's tasks concurrently. Layer N+1 starts
	// only after every task of layer N has finished.
	ModeParallel Mode = "parallel"
)

// FailurePolicy decides what happens after a task fails.
type FailurePolicy string

const (
	// PolicyAbort stops dispatching after the first failure. Tasks that
	// have not started are skipped.
	PolicyAbort FailurePolicy = "abort"

	// PolicyContinue keeps going. Tasks that depend, directly or through a
	// skipped task, on a failed task are skipped.
	PolicyContinue FailurePolicy = "continue"
)

// TaskStatus is the outcome of one task.
type TaskStatus string

const (
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
	StatusSkipped   TaskStatus = "skipped"
)

// ExecOptions configures ExecutePlan. The zero value runs sequentially and
// aborts on the first failure.
type ExecOptions struct {
	Mode   Mode
	Policy FailurePolicy

	// Workers bounds concurrent tasks per layer in ModeParallel.
	// Zero means no bound.
	Workers int
}

func (o ExecOptions) withDefaults() ExecOptions {
	if o.Mode == "" {
		o.Mode = ModeSequential
	}
	if o.Policy == "" {
		o.Policy = PolicyAbort
	}
	return o
}

// TaskResult is the outcome of the task at the same plan position.
type TaskResult struct {
	Status  TaskStatus
	Outputs ir.IRObject
	Err     error
}

// RunResult collects the outcome of one ExecutePlan call.
type RunResult struct {
	RunID   string
	Plan    *Plan
	Options ExecOptions
	Results []TaskResult

	// Values holds task outputs keyed "<node>.<port>". A compiled task
	// contributes only its boundary outputs; ports consumed inside the
	// boundary stay internal.
	Values ir.IRObject
}

// Count returns how many tasks ended with status.
func (r *RunResult) Count(status TaskStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Err joins every task error in plan order, or returns nil.
func (r *RunResult) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// run is the mutable state of one plan execution.
type run struct {
	plan    *Plan
	opts    ExecOptions
	nodes   map[graph.NodeRef]node.Node
	results []TaskResult

	mu     sync.Mutex
	values ir.IRObject
}

// ExecutePlan runs the current execution plan.
//
// Task failures never get masked: the returned error joins every task error,
// and the RunResult is returned alongside it so callers can inspect partial
// results. Compiled-task failures carry ErrCodeSubgraphExecution and leave
// the compiled artifact cached. Cancelling ctx stops dispatch; unstarted
// tasks are skipped and ctx.Err() is included in the returned error.
func (s *Scheduler) ExecutePlan(ctx context.Context, opts ExecOptions) (*RunResult, error) {
	opts = opts.withDefaults()
	switch opts.Mode {
	case ModeSequential, ModeParallel:
	default:
		return nil, fmt.Errorf("execute plan: unknown mode %q", opts.Mode)
	}
	switch opts.Policy {
	case PolicyAbort, PolicyContinue:
	default:
		return nil, fmt.Errorf("execute plan: unknown failure policy %q", opts.Policy)
	}

	plan, err := s.GetExecutionPlan()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	nodes := make(map[graph.NodeRef]node.Node, len(s.nodes))
	for ref, n := range s.nodes {
		nodes[ref] = n
	}
	s.mu.RUnlock()

	r := &run{
		plan:    plan,
		opts:    opts,
		nodes:   nodes,
		results: make([]TaskResult, plan.Len()),
		values:  ir.IRObject{},
	}
	runID := s.tokens.Generate()
	log := s.logger.With("run", runID)
	log.Info("executing plan", "tasks", plan.Len(), "layers", len(plan.Layers), "mode", opts.Mode, "policy", opts.Policy)

	if opts.Mode == ModeParallel {
		r.dispatchLayers(ctx)
	} else {
		r.dispatchSequential(ctx)
	}

	result := &RunResult{
		RunID:   runID,
		Plan:    plan,
		Options: opts,
		Results: r.results,
		Values:  r.values,
	}
	for i, res := range result.Results {
		switch res.Status {
		case StatusFailed:
			log.Error("task failed", "task", plan.Tasks[i].Label(), "error", res.Err)
		case StatusSkipped:
			log.Debug("task skipped", "task", plan.Tasks[i].Label())
		}
	}

	runErr := result.Err()
	if ctx.Err() != nil {
		runErr = errors.Join(runErr, ctx.Err())
	}

	if s.recorder != nil {
		if _, err := s.recorder.RecordRun(context.WithoutCancel(ctx), result.Record()); err != nil {
			log.Error("failed to record run", "error", err)
			runErr = errors.Join(runErr, fmt.Errorf("record run %s: %w", runID, err))
		}
	}

	log.Info("plan finished",
		"succeeded", result.Count(StatusSucceeded),
		"failed", result.Count(StatusFailed),
		"skipped", result.Count(StatusSkipped))
	return result, runErr
}

func (r *run) dispatchSequential(ctx context.Context) {
	aborted := false
	for i := range r.plan.Tasks {
		if aborted || ctx.Err() != nil || r.blocked(i) {
			r.results[i] = TaskResult{Status: StatusSkipped}
			continue
		}
		r.results[i] = r.execute(ctx, i)
		if r.results[i].Status == StatusFailed && r.opts.Policy == PolicyAbort {
			aborted = true
		}
	}
}

func (r *run) dispatchLayers(ctx context.Context) {
	aborted := false
	for _, layer := range r.plan.Layers {
		if aborted || ctx.Err() != nil {
			for _, i := range layer {
				r.results[i] = TaskResult{Status: StatusSkipped}
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		if r.opts.Workers > 0 {
			g.SetLimit(r.opts.Workers)
		}
		for _, i := range layer {
			g.Go(func() error {
				// gctx is cancelled by the first abort-policy failure in
				// this layer; tasks that have not started yet are skipped.
				if gctx.Err() != nil || r.blocked(i) {
					r.results[i] = TaskResult{Status: StatusSkipped}
					return nil
				}
				r.results[i] = r.execute(ctx, i)
				if r.results[i].Status == StatusFailed && r.opts.Policy == PolicyAbort {
					return r.results[i].Err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			aborted = true
		}
	}
}

// blocked reports whether a dependency of task i did not succeed. Only
// reachable under PolicyContinue, since abort stops dispatch first.
func (r *run) blocked(i int) bool {
	for _, d := range r.plan.Tasks[i].Deps {
		if r.results[d].Status != StatusSucceeded {
			return true
		}
	}
	return false
}

func (r *run) execute(ctx context.Context, i int) TaskResult {
	t := &r.plan.Tasks[i]

	r.mu.Lock()
	in := make(ir.IRObject, len(t.Inputs))
	for _, b := range t.Inputs {
		if v, ok := r.values[b.Source]; ok {
			in[b.Port] = v
		}
	}
	r.mu.Unlock()

	var out ir.IRObject
	var err error
	switch t.Kind {
	case TaskCompiled:
		out, err = t.Compiled.Execute(ctx, in)
	default:
		out, err = r.executeNode(ctx, t.Node, in)
	}
	if err != nil {
		return TaskResult{Status: StatusFailed, Err: err}
	}

	r.mu.Lock()
	for port, v := range out {
		if t.Kind == TaskCompiled {
			r.values[port] = v
		} else {
			r.values[compiler.PortName(t.Node, port)] = v
		}
	}
	r.mu.Unlock()
	return TaskResult{Status: StatusSucceeded, Outputs: out}
}

func (r *run) executeNode(ctx context.Context, ref graph.NodeRef, in ir.IRObject) (ir.IRObject, error) {
	n, ok := r.nodes[ref]
	if !ok {
		e := graph.NewUnknownNodeError(ref)
		e.Message = "no node registered"
		return nil, e
	}
	out, err := n.Execute(ctx, in)
	if err != nil {
		return nil, &graph.Error{
			Code:    graph.ErrCodeNodeExecution,
			Message: "node execution failed",
			Node:    ref,
			Err:     err,
		}
	}
	return out, nil
}

// Record converts the run into its stored form.
func (r *RunResult) Record() store.RunRecord {
	rec := store.RunRecord{
		ID:       r.RunID,
		PlanHash: r.Plan.Hash,
		Mode:     string(r.Options.Mode),
		Policy:   string(r.Options.Policy),
		Status:   "succeeded",
		Tasks:    r.Plan.Len(),
		Failed:   r.Count(StatusFailed),
		Skipped:  r.Count(StatusSkipped),
		Results:  make([]store.TaskRecord, len(r.Results)),
	}
	if rec.Failed > 0 || rec.Skipped > 0 {
		rec.Status = "failed"
	}
	for i, res := range r.Results {
		t := &r.Plan.Tasks[i]
		tr := store.TaskRecord{
			Position: i,
			Kind:     string(t.Kind),
			Label:    t.Label(),
			Layer:    t.Layer,
			Status:   string(res.Status),
			Outputs:  res.Outputs,
		}
		if res.Err != nil {
			tr.Error = res.Err.Error()
		}
		rec.Results[i] = tr
	}
	return rec
}
