package engine

import (
	"errors"
	"fmt"
)

// Budget tracks advancement iterations for one proof and enforces the
// optional max-iterations bound.
//
// Budgets are per session: iterations spent by earlier sessions on the
// same record do not count against the new bound.
type Budget struct {
	limit     int
	unbounded bool
	current   int
}

// NewBudget creates a budget. A nil limit means unbounded.
func NewBudget(limit *int) *Budget {
	if limit == nil {
		return &Budget{unbounded: true}
	}
	return &Budget{limit: *limit}
}

// Check increments the iteration counter and validates against the limit.
//
// Returns IterationsExceededError if the budget is spent; the caller must
// not perform the iteration in that case.
func (b *Budget) Check(label string) error {
	if !b.unbounded && b.current >= b.limit {
		return &IterationsExceededError{Label: label, Iterations: b.current, Limit: b.limit}
	}
	b.current++
	return nil
}

// Exhausted reports whether another Check would fail.
func (b *Budget) Exhausted() bool {
	return !b.unbounded && b.current >= b.limit
}

// Current returns the number of iterations taken.
func (b *Budget) Current() int {
	return b.current
}

// Limit returns the bound and whether one is set.
func (b *Budget) Limit() (int, bool) {
	return b.limit, !b.unbounded
}

// IterationsExceededError is returned when a session spends its budget.
//
// It ends the advancement loop normally; the proof is left open and the
// verdict reads bounded-incomplete.
type IterationsExceededError struct {
	Label      string
	Iterations int
	Limit      int
}

// Error implements the error interface.
func (e *IterationsExceededError) Error() string {
	return fmt.Sprintf("proof %s spent its iteration budget: %d of %d", e.Label, e.Iterations, e.Limit)
}

// IsIterationsExceededError returns true if the error is an IterationsExceededError.
// Uses errors.As to handle wrapped errors.
func IsIterationsExceededError(err error) bool {
	var ie *IterationsExceededError
	return errors.As(err, &ie)
}
