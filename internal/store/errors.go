package store

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound means no record exists for the requested label.
	ErrRecordNotFound = errors.New("proof record not found")

	// ErrCorruptRecord means a record file exists but cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt proof record")

	// ErrInvalidLabel means a label cannot be mapped to a record path.
	ErrInvalidLabel = errors.New("invalid proof label")
)

// IOError reports a proof store failure for one label.
type IOError struct {
	Op    string // "load", "persist", "list"
	Label string
	Path  string
	Err   error
}

func (e *IOError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("proof store %s %q: %v", e.Op, e.Label, e.Err)
	}
	return fmt.Sprintf("proof store %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err reports a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsIOError returns true if err is or wraps an *IOError.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
