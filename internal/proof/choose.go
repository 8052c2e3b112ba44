package proof

import "github.com/roach88/kompass/internal/claims"

// Origin says where a record handed to a session came from.
type Origin string

const (
	OriginLoaded  Origin = "loaded"
	OriginCreated Origin = "created"
)

// Choose implements reuse-or-create without touching storage: existing is
// the record found under the claim's label (nil when none was found).
// An existing record is reused unless forceNew is set or it has no nodes
// left, as after pruning its initial node.
func Choose(existing *Record, c claims.Claim, forceNew bool) (*Record, Origin) {
	if existing != nil && !forceNew && len(existing.Graph.Nodes) > 0 {
		return existing, OriginLoaded
	}
	return NewRecord(c), OriginCreated
}
