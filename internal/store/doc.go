// Package store provides SQLite-backed durable storage for layouts and
// simulation runs.
//
// The store holds:
//   - Layout snapshots: content-addressed by ir.LayoutHash
//   - Named layouts: user-facing names with a revision counter
//   - Runs: one ir.RunRecord per finished engine run
//   - Trace entries: the deterministic trace of each run
//
// Every run references the exact layout snapshot it ran against, so a stored
// trace can always be re-run and compared.
//
// # Ordering
//
// All queries order by logical seq (ties broken by id COLLATE BINARY), never
// by wall-clock timestamps, so reads are identical across machines.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
