// Package store provides SQLite-backed durable storage for criteria
// documents and controller decision logs.
//
// The store holds:
//   - Configs: named, versioned criteria documents
//   - Runs: the document each controller run started from
//   - Ticks: one record per decision (reading in, action out)
//   - Changes: criteria mutations applied during a run
//
// # Logical Time
//
// All ordering uses seq INTEGER (the controller's logical clock), never
// timestamps. Ticks and changes of a run share one seq space, so a run can
// be replayed exactly by walking both in seq order (GetRunHistory).
//
// # Deterministic Query Results
//
// Log queries use ORDER BY seq ASC, id COLLATE BINARY ASC so that identical
// logs always read back identically.
//
// # Idempotent Writes
//
// Tick and change IDs are content-addressed (ir.TickID, ir.ChangeID) and
// inserted with ON CONFLICT(id) DO NOTHING; rewriting a record is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
