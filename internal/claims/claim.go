package claims

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Claim is a single verification obligation. Claims are immutable once
// loaded; the index hands out copies.
type Claim struct {
	// Label uniquely identifies the claim within its index and names the
	// persisted proof record.
	Label string `json:"label"`

	// Start is the symbol execution begins from.
	Start string `json:"start"`

	// Program is the IR artifact the claim is checked against.
	Program string `json:"program,omitempty"`

	// Depth overrides the session's per-step depth bound when positive.
	Depth int `json:"depth,omitempty"`

	Description string `json:"description,omitempty"`
}

// FromArtifact builds the claim that `prove` discharges for a start symbol
// of a built artifact. The label is the artifact's base name without its
// .json extension, suffixed with the start symbol:
//
//	FromArtifact("target/debug/linked.smir.json", "main").Label == "linked.smir.main"
func FromArtifact(artifactPath, start string) Claim {
	base := strings.TrimSuffix(filepath.Base(artifactPath), ".json")
	return Claim{
		Label:   fmt.Sprintf("%s.%s", base, start),
		Start:   start,
		Program: artifactPath,
	}
}

// Validate checks the fields every claim must carry.
func (c Claim) Validate() error {
	if c.Label == "" {
		return &ParseError{Field: "label", Message: "label is required"}
	}
	if strings.ContainsAny(c.Label, `/\`) || c.Label == "." || c.Label == ".." {
		return &ParseError{Field: c.Label, Message: "label must not contain path separators"}
	}
	if c.Start == "" {
		return &ParseError{Field: c.Label + ".start", Message: "start symbol is required"}
	}
	if c.Depth < 0 {
		return &ParseError{Field: c.Label + ".depth", Message: "depth must be non-negative"}
	}
	return nil
}
