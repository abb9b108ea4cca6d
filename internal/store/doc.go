// Package store provides SQLite-backed durable storage for the scheduler.
//
// It holds two kinds of records:
//   - Compiled subgraph manifests, keyed by content hash. The compiler
//     rehydrates artifacts from here when its memory cache misses.
//   - Plan runs and their per-task results, keyed by UUIDv7 run token.
//
// # Ordering
//
// Every table carries a seq column assigned from MAX(seq)+1 inside the write
// transaction. Listings order by seq ASC, never by timestamp, so history
// reads back identically across machines.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Task outputs are stored as RFC 8785 canonical JSON produced by
// internal/ir.
package store
