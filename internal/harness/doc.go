// Package harness runs graph scenarios as executable contract tests.
//
// A scenario names a graph file, how to execute it, and what the schedule
// and the run must look like. The harness loads the graph over the builtin
// node kinds, compiles marked boundaries, executes the plan against a fresh
// in-memory store, then evaluates the assertions.
//
// # Scenario Format
//
//	name: pipeline_parallel
//	description: "What this scenario validates"
//	graph: ../graphs/pipeline.cue   # relative to the scenario file
//	mode: parallel                  # sequential (default) | parallel
//	policy: continue                # abort (default) | continue
//	workers: 2
//	expect_error: NODE_EXECUTION    # omit when the run must succeed
//	run_token: scenario-pipeline
//	assertions:
//	  - type: order
//	    nodes: [src, total, out]
//	  - type: layer
//	    node: total
//	    layer: 2
//	  - type: task_status
//	    task: hot
//	    status: succeeded
//	  - type: task_count
//	    status: skipped
//	    count: 0
//	  - type: value
//	    port: out.value
//	    expect: 16
//	  - type: recorded
//	    status: succeeded
//
// # Deterministic Testing
//
// Runs use a fixed run token (run_token, or "test-run-default"), so the
// trace of a scenario is identical across runs and can be compared with
// RunWithGolden. Snapshots leave out plan hashes and cache keys.
package harness
