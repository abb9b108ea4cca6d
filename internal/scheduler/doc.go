// Package scheduler ties the dependency index, compilation boundaries and the
// subgraph compiler together into one execution surface.
//
// A Scheduler answers three questions about its graph:
//   - In what order can the nodes run? (GetExecutionOrder)
//   - Which nodes can run at the same time? (GetLayers)
//   - What exactly will run, and as which units? (GetExecutionPlan)
//
// # Plans
//
// The plan condenses every boundary to one unit. A boundary with a current
// compiled artifact becomes a single compiled task; any other boundary runs
// its members as ordinary node tasks. Every node appears in exactly one task.
//
// Plans are cached against a structural generation counter. Any mutation of
// nodes, edges, wires or boundaries moves the counter, and the next
// GetExecutionPlan rebuilds.
//
// # Execution
//
// ExecutePlan dispatches sequentially in plan order, or layer by layer with
// each layer's tasks running concurrently. Failures either abort the run or
// skip only the tasks downstream of the failure. Runs can be recorded to a
// store.Store.
package scheduler
