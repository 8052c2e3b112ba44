package engine

import (
	"errors"
	"fmt"
)

// EngineError represents a failure of the external engine during a session.
//
// Engine errors include:
//   - Open failures: the engine could not load the program
//   - Step/run failures: the engine reported an error for a request
//   - Protocol violations: the engine answered with something unusable
//   - Close failures: the session could not be released cleanly
//
// Engine errors are never retried.
type EngineError struct {
	// Code identifies the error category.
	Code EngineErrorCode

	// Op is the session operation that failed ("open", "step", "run", "close").
	Op string

	// Label identifies the affected proof, if any.
	Label string

	// Node identifies the node being stepped, if any.
	Node int

	// Err is the underlying failure.
	Err error
}

// EngineErrorCode categorizes engine errors.
type EngineErrorCode string

const (
	// ErrCodeSession indicates the engine itself reported a failure.
	ErrCodeSession EngineErrorCode = "SESSION_FAILED"

	// ErrCodeProtocol indicates an answer the prover cannot fold.
	ErrCodeProtocol EngineErrorCode = "PROTOCOL_VIOLATION"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	switch {
	case e.Label != "" && e.Node > 0:
		return fmt.Sprintf("%s: engine %s (proof=%s, node=%d): %v", e.Code, e.Op, e.Label, e.Node, e.Err)
	case e.Label != "":
		return fmt.Sprintf("%s: engine %s (proof=%s): %v", e.Code, e.Op, e.Label, e.Err)
	default:
		return fmt.Sprintf("%s: engine %s: %v", e.Code, e.Op, e.Err)
	}
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsEngineError returns true if err is or wraps an *EngineError.
// Uses errors.As to handle wrapped errors.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// IsProtocolError returns true if the error is a protocol violation.
func IsProtocolError(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeProtocol
	}
	return false
}

func sessionError(op, label string, node int, err error) *EngineError {
	return &EngineError{Code: ErrCodeSession, Op: op, Label: label, Node: node, Err: err}
}

func protocolError(op, label string, node int, format string, args ...any) *EngineError {
	return &EngineError{Code: ErrCodeProtocol, Op: op, Label: label, Node: node, Err: fmt.Errorf(format, args...)}
}
