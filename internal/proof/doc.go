// Package proof models the persisted state of a claim's proof: an
// exploration graph of symbolic execution nodes, the verdict derived from
// it, and a summary naming open and failed branches.
//
// Records are plain data. Storage lives in internal/store and the engine
// loop that grows a graph lives in internal/engine; this package only
// holds the pure operations both rely on (verdicts, pruning, the
// reuse-or-create choice and canonical digests).
package proof
