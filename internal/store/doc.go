// Package store persists proof records and the session ledger.
//
// # Proof records
//
// Each record lives in its own file, addressed by label:
//
//	<proof_dir>/<label>/proof.json
//
// Records can be checked for existence, loaded and overwritten one at a
// time without reading the rest of the directory. Writes go to a temp file
// in the same directory which is fsynced and renamed over the target, so a
// crashed write never leaves a partial record visible. Reads are strict:
// unknown fields or trailing content mark the record corrupt.
//
// Invocations targeting different labels touch disjoint files and need no
// cross-process locking.
//
// # Session ledger
//
// The ledger is a SQLite database (<proof_dir>/sessions.db) with one row per
// proof session: which record was advanced, how far, and the digest of the
// state it left behind. It is append-only and never consulted when deciding
// whether to reuse a record.
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
