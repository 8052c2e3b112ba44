package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/kompass/internal/artifact"
	"github.com/roach88/kompass/internal/claims"
	"github.com/roach88/kompass/internal/engine"
	"github.com/roach88/kompass/internal/session"
	"github.com/roach88/kompass/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution, every proof passed
	ExitFailure      = 1 // A proof failed or ran out of iterations, or a batch claim failed
	ExitCommandError = 2 // Command error (build, missing artifact, parse, store, engine)
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeInvalid      = "E002" // Request failed validation
	ErrCodeBuild        = "E003" // Build or manifest failure
	ErrCodePrecondition = "E004" // Artifact missing, rebuild needed
	ErrCodeNotFound     = "E005" // Proof record not found
	ErrCodeParse        = "E006" // Spec source could not be parsed
	ErrCodeUnknownLabel = "E007" // Label not in the spec source
	ErrCodeStore        = "E008" // Proof store or ledger IO
	ErrCodeEngine       = "E009" // Engine session failed
	ErrCodeProtocol     = "E010" // Engine answered out of protocol
	ErrCodeConfig       = "E011" // kompass.yaml could not be read
	ErrCodeWriteFailed  = "E012" // Output file could not be written
	ErrCodeProofFailed  = "E_PROOF_FAILED"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitCommandError (2) if the error is not an ExitError, since
// anything unclassified stopped the command before it finished.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// ErrorCode classifies err into one of the ErrCode values.
func ErrorCode(err error) string {
	switch {
	case session.IsInvalidRequest(err):
		return ErrCodeInvalid
	case artifact.IsPreconditionError(err):
		return ErrCodePrecondition
	case artifact.IsBuildError(err):
		return ErrCodeBuild
	case claims.IsUnknownLabelError(err):
		return ErrCodeUnknownLabel
	case claims.IsParseError(err):
		return ErrCodeParse
	case store.IsNotFound(err):
		return ErrCodeNotFound
	case store.IsIOError(err):
		return ErrCodeStore
	case engine.IsProtocolError(err):
		return ErrCodeProtocol
	case engine.IsEngineError(err):
		return ErrCodeEngine
	case IsConfigError(err):
		return ErrCodeConfig
	default:
		return ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status  string    `json:"status"`             // "ok" or "error"
	Data    any       `json:"data,omitempty"`     // success payload
	Error   *CLIError `json:"error,omitempty"`    // error details
	TraceID string    `json:"trace_id,omitempty"` // optional trace correlation
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns the ExitError the
// command should return. Every classified error is a command error.
func (f *OutputFormatter) Fail(op string, err error) error {
	if werr := f.Error(ErrorCode(err), err.Error(), nil); werr != nil {
		return werr
	}
	return WrapExitError(ExitCommandError, op+" failed", err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
