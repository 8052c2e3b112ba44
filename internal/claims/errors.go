package claims

import (
	"errors"
	"fmt"
)

var (
	// ErrSpecParse is wrapped by every *ParseError.
	ErrSpecParse = errors.New("spec parse error")

	// ErrUnknownLabel is wrapped by every *UnknownLabelError.
	ErrUnknownLabel = errors.New("unknown claim label")
)

// ParseError reports malformed spec source content. File, Line and Column
// are set when the parser knows where the problem is.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.File, e.Line, e.Column, e.Field, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return ErrSpecParse
}

// UnknownLabelError is returned by Index.Get for a label the index does not hold.
type UnknownLabelError struct {
	Label string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("unknown claim label %q", e.Label)
}

func (e *UnknownLabelError) Unwrap() error {
	return ErrUnknownLabel
}

// IsParseError returns true if err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsUnknownLabelError returns true if err is or wraps an *UnknownLabelError.
func IsUnknownLabelError(err error) bool {
	var ue *UnknownLabelError
	return errors.As(err, &ue)
}
