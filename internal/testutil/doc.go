// Package testutil provides deterministic helpers for scheduler tests:
// an execution log with a logical clock, node constructors that record when
// they run, a barrier that proves concurrent dispatch, and a fixed run token
// generator.
package testutil
