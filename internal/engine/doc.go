// Package engine drives the external rewriting engine for proof records.
//
// The engine itself decides every rewrite step; this package only owns the
// session around it and the bookkeeping of its answers:
//
//	Engine.Open -> Session.Step (one frontier node at a time) -> Session.Close
//
// Prover.Advance is the advancement loop. It opens one session per call,
// extends the lowest pending frontier node on each iteration, folds the
// result into the record's graph and stops once the verdict is terminal or
// the iteration budget is spent. The session is closed on every exit path.
//
// ProcessEngine is the production Engine: it spawns an engine binary and
// speaks newline-delimited JSON over its stdin and stdout. When a bug
// report path is given, every request and response of the session is
// appended to that file.
//
// The loop is strictly sequential. Sessions are not safe for concurrent use.
package engine
