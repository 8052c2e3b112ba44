package claims

import (
	"fmt"
)

// Index maps labels to claims and remembers the order they were added in.
type Index struct {
	source string
	order  []string
	claims map[string]Claim
}

// NewIndex builds an index from claims in the given order.
// Duplicate labels and invalid claims are rejected; nothing is indexed on error.
func NewIndex(source string, cs ...Claim) (*Index, error) {
	idx := &Index{
		source: source,
		order:  make([]string, 0, len(cs)),
		claims: make(map[string]Claim, len(cs)),
	}
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			setFile(err, source)
			return nil, err
		}
		if _, dup := idx.claims[c.Label]; dup {
			return nil, &ParseError{
				File:    source,
				Field:   c.Label,
				Message: fmt.Sprintf("duplicate claim label %q", c.Label),
			}
		}
		idx.order = append(idx.order, c.Label)
		idx.claims[c.Label] = c
	}
	return idx, nil
}

// Source returns the path the index was loaded from, if any.
func (idx *Index) Source() string {
	return idx.source
}

// Len returns the number of indexed claims.
func (idx *Index) Len() int {
	return len(idx.order)
}

// Get returns the claim with the given label.
func (idx *Index) Get(label string) (Claim, error) {
	c, ok := idx.claims[label]
	if !ok {
		return Claim{}, &UnknownLabelError{Label: label}
	}
	return c, nil
}

// All returns every claim in index order.
func (idx *Index) All() []Claim {
	out := make([]Claim, 0, len(idx.order))
	for _, label := range idx.order {
		out = append(out, idx.claims[label])
	}
	return out
}

// Labels enumerates labels in index order, filtered by include and exclude.
//
// An empty include selects every label. A non-empty include selects only
// the labels it names that the index actually holds. Excluded labels are
// dropped in both cases. The filter sets never reorder the result and the
// result never repeats a label.
func (idx *Index) Labels(include, exclude []string) []string {
	inc := toSet(include)
	exc := toSet(exclude)

	out := make([]string, 0, len(idx.order))
	for _, label := range idx.order {
		if len(inc) > 0 {
			if _, ok := inc[label]; !ok {
				continue
			}
		}
		if _, ok := exc[label]; ok {
			continue
		}
		out = append(out, label)
	}
	return out
}

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return set
}

func setFile(err error, file string) {
	if pe, ok := err.(*ParseError); ok && pe.File == "" {
		pe.File = file
	}
}
