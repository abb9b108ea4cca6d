package harness

import "github.com/roach88/nodegraph/internal/ir"

// TraceEvent is the outcome of one plan task. Events are in plan order.
type TraceEvent struct {
	Seq     int64       `json:"seq"` // 1-based plan position
	Task    string      `json:"task"`
	Kind    string      `json:"kind"`
	Layer   int         `json:"layer"`
	Status  string      `json:"status"`
	Outputs ir.IRObject `json:"outputs,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when the expected error (if any) matched and every
	// assertion held.
	Pass bool `json:"pass"`

	// RunID is the token of the recorded run, empty if the plan never ran.
	RunID string `json:"run_id,omitempty"`

	// Order and Layers are the node-level schedule.
	Order  []string   `json:"order"`
	Layers [][]string `json:"layers"`

	// Trace holds one event per plan task.
	Trace []TraceEvent `json:"trace"`

	// Values holds every produced output keyed "<node>.<port>".
	Values ir.IRObject `json:"values"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Order:  []string{},
		Layers: [][]string{},
		Trace:  []TraceEvent{},
		Values: ir.IRObject{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTaskTrace appends the outcome of the next plan task.
func (r *Result) AddTaskTrace(event TraceEvent) {
	event.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, event)
}

// Event returns the trace event for task, if present.
func (r *Result) Event(task string) (TraceEvent, bool) {
	for _, e := range r.Trace {
		if e.Task == task {
			return e, true
		}
	}
	return TraceEvent{}, false
}
