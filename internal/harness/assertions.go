package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Task, event.Status)
		}
	}

	return buf.String()
}

// AssertionContext provides what the stored-run assertions need.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// assertOrder checks that nodes appear in the given relative order.
// They don't need to be consecutive.
func assertOrder(result *Result, assertion Assertion) error {
	prev := -1
	for _, n := range assertion.Nodes {
		pos := slices.Index(result.Order, n)
		if pos < 0 {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("all nodes present: %v", assertion.Nodes),
				Actual:   fmt.Sprintf("missing node: %s (order %v)", n, result.Order),
			}
		}
		if pos <= prev {
			return &AssertionError{
				Type:     AssertOrder,
				Expected: fmt.Sprintf("nodes in order: %v", assertion.Nodes),
				Actual:   fmt.Sprintf("order %v", result.Order),
			}
		}
		prev = pos
	}
	return nil
}

// assertLayer checks the layer index of a node.
func assertLayer(result *Result, assertion Assertion) error {
	for i, layer := range result.Layers {
		if slices.Contains(layer, assertion.Node) {
			if i == assertion.Layer {
				return nil
			}
			return &AssertionError{
				Type:     AssertLayer,
				Expected: fmt.Sprintf("%s in layer %d", assertion.Node, assertion.Layer),
				Actual:   fmt.Sprintf("layer %d", i),
			}
		}
	}
	return &AssertionError{
		Type:     AssertLayer,
		Expected: fmt.Sprintf("%s in layer %d", assertion.Node, assertion.Layer),
		Actual:   "node not layered",
	}
}

// assertTaskStatus checks the status of one plan task.
func assertTaskStatus(result *Result, assertion Assertion) error {
	event, ok := result.Event(assertion.Task)
	if !ok {
		return &AssertionError{
			Type:     AssertTaskStatus,
			Expected: fmt.Sprintf("task %s %s", assertion.Task, assertion.Status),
			Actual:   "task not in trace",
			Trace:    result.Trace,
		}
	}
	if event.Status != assertion.Status {
		return &AssertionError{
			Type:     AssertTaskStatus,
			Expected: fmt.Sprintf("task %s %s", assertion.Task, assertion.Status),
			Actual:   event.Status,
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTaskCount checks how many tasks ended with a status.
func assertTaskCount(result *Result, assertion Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Status == assertion.Status {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTaskCount,
			Expected: fmt.Sprintf("%d %s task(s)", assertion.Count, assertion.Status),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertValue compares a produced output with the expected value using
// canonical JSON, so 16 in YAML equals ir.IRInt(16).
func assertValue(result *Result, assertion Assertion) error {
	actual, ok := result.Values[assertion.Port]
	if !ok {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %v", assertion.Port, assertion.Expect),
			Actual:   "port produced no value",
			Trace:    result.Trace,
		}
	}
	want, err := ir.MarshalCanonical(assertion.Expect)
	if err != nil {
		return fmt.Errorf("value assertion for %s: %w", assertion.Port, err)
	}
	got, err := ir.MarshalCanonical(actual)
	if err != nil {
		return fmt.Errorf("value assertion for %s: %w", assertion.Port, err)
	}
	if !bytes.Equal(want, got) {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %s", assertion.Port, want),
			Actual:   string(got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertRecorded reads the run back from the store and checks the status of
// the run, or of one task when Task is set.
func assertRecorded(result *Result, assertion Assertion, actx *AssertionContext) error {
	if actx == nil || actx.Store == nil {
		return fmt.Errorf("recorded assertion requires a store")
	}
	if result.RunID == "" {
		return &AssertionError{
			Type:     AssertRecorded,
			Expected: "a recorded run",
			Actual:   "plan never ran",
		}
	}
	run, err := actx.Store.ReadRun(actx.Ctx, result.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return &AssertionError{
			Type:     AssertRecorded,
			Expected: fmt.Sprintf("run %s in store", result.RunID),
			Actual:   "run not found",
		}
	}
	if err != nil {
		return fmt.Errorf("recorded assertion: %w", err)
	}

	if assertion.Task == "" {
		if run.Status != assertion.Status {
			return &AssertionError{
				Type:     AssertRecorded,
				Expected: fmt.Sprintf("run %s", assertion.Status),
				Actual:   run.Status,
			}
		}
		return nil
	}
	for _, task := range run.Results {
		if task.Label == assertion.Task {
			if task.Status != assertion.Status {
				return &AssertionError{
					Type:     AssertRecorded,
					Expected: fmt.Sprintf("stored task %s %s", assertion.Task, assertion.Status),
					Actual:   task.Status,
				}
			}
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertRecorded,
		Expected: fmt.Sprintf("stored task %s", assertion.Task),
		Actual:   "task not recorded",
	}
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOrder:
			err = assertOrder(result, a)
		case AssertLayer:
			err = assertLayer(result, a)
		case AssertTaskStatus:
			err = assertTaskStatus(result, a)
		case AssertTaskCount:
			err = assertTaskCount(result, a)
		case AssertValue:
			err = assertValue(result, a)
		case AssertRecorded:
			err = assertRecorded(result, a, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
