// Package session is the orchestration layer behind every command.
//
// An Orchestrator receives a Request, validates it, and drives the artifact
// resolver, the proof store, the prover and the renderers to produce the
// matching Result. Requests form a closed set; Execute rejects anything it
// has no handler for with ErrUnknownRequest.
//
// Each proof session is noted in a SQLite ledger next to the proof records.
// The ledger is advisory: a ledger that cannot be opened or written is
// logged and otherwise ignored.
package session
