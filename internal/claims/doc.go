// Package claims loads verification obligations ("claims") from a spec
// source and indexes them by label.
//
// Two source formats are supported:
//   - CUE (.cue): a top-level `claim` struct keyed by label
//   - YAML or JSON (.yaml, .yml, .json): a top-level `claims` mapping keyed by label
//
// Each claim carries a start symbol and optionally the program artifact it
// is checked against, a per-claim depth and a description:
//
//	claim: {
//		"ok":  {start: "ok", description: "trivially true"}
//		"bad": {start: "bad", program: "target/debug/linked.smir.json"}
//	}
//
// Index order is source order. Labels filters the index without reordering
// it, so callers that iterate the filtered labels see claims in the order
// the author wrote them.
//
// Parsing is atomic: a malformed source yields a *ParseError and no index.
package claims
