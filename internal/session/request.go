package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownRequest is returned by Execute for a Request variant it has no
// handler for.
var ErrUnknownRequest = errors.New("unknown request")

// Request is one operation. The set of variants is closed: only types in
// this package implement it.
type Request interface {
	isRequest()
	name() string
}

// BuildRequest builds the IR artifact of a project.
type BuildRequest struct {
	ProjectDir string
	Clean      bool
}

// ProveRequest proves the claim of one start symbol against the project's
// artifact.
type ProveRequest struct {
	ProjectDir    string
	StartSymbol   string `validate:"required,symbol"`
	ProofDir      string
	BugReport     string
	MaxDepth      *int `validate:"omitempty,gte=0"`
	MaxIterations *int `validate:"omitempty,gte=0"`
	Reload        bool
}

// ProveRawRequest proves every claim of a spec file selected by the
// include and exclude filters, in source order.
type ProveRawRequest struct {
	SpecFile      string `validate:"required"`
	ProjectDir    string
	Include       []string `validate:"dive,required"`
	Exclude       []string `validate:"dive,required"`
	ProofDir      string
	BugReport     string
	MaxDepth      *int `validate:"omitempty,gte=0"`
	MaxIterations *int `validate:"omitempty,gte=0"`
	Reload        bool
}

// ShowRequest renders a persisted proof as text. An empty ID lists the
// persisted proofs instead.
type ShowRequest struct {
	ProjectDir string
	ProofDir   string
	ID         string `validate:"omitempty,proofid"`
	Full       bool
}

// ViewRequest opens the interactive viewer on a persisted proof.
type ViewRequest struct {
	ProjectDir string
	ProofDir   string
	ID         string `validate:"required,proofid"`
	Full       bool
	Watch      bool
}

// PruneRequest removes a node and everything reachable only through it.
type PruneRequest struct {
	ProjectDir string
	ProofDir   string
	ID         string `validate:"required,proofid"`
	NodeID     int    `validate:"gt=0"`
}

// RunRequest executes a program concretely from a start symbol.
type RunRequest struct {
	ProjectDir  string
	File        string
	StartSymbol string `validate:"required,symbol"`
	Depth       *int   `validate:"omitempty,gte=0"`
}

// HistoryRequest lists recorded proof sessions, newest first. An empty ID
// lists every proof.
type HistoryRequest struct {
	ProjectDir string
	ProofDir   string
	ID         string `validate:"omitempty,proofid"`
	Limit      int    `validate:"gte=0"`
}

func (BuildRequest) isRequest()    {}
func (ProveRequest) isRequest()    {}
func (ProveRawRequest) isRequest() {}
func (ShowRequest) isRequest()     {}
func (ViewRequest) isRequest()     {}
func (PruneRequest) isRequest()    {}
func (RunRequest) isRequest()      {}
func (HistoryRequest) isRequest()  {}

func (BuildRequest) name() string    { return "build" }
func (ProveRequest) name() string    { return "prove" }
func (ProveRawRequest) name() string { return "prove-raw" }
func (ShowRequest) name() string     { return "show" }
func (ViewRequest) name() string     { return "view" }
func (PruneRequest) name() string    { return "prune" }
func (RunRequest) name() string      { return "run" }
func (HistoryRequest) name() string  { return "history" }

// InvalidRequestError reports a request that failed validation before any
// work was done.
type InvalidRequestError struct {
	Op     string
	Fields []string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s request: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("invalid %s request: %s", e.Op, strings.Join(e.Fields, "; "))
}

func (e *InvalidRequestError) Unwrap() error {
	return e.Err
}

// IsInvalidRequest returns true if err is or wraps an *InvalidRequestError.
func IsInvalidRequest(err error) bool {
	var ie *InvalidRequestError
	return errors.As(err, &ie)
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("proofid", validateProofID)
	_ = v.RegisterValidation("symbol", validateSymbol)
	return v
}

// validateProofID rejects ids that would escape the proof directory.
func validateProofID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// validateSymbol rejects symbols with whitespace or path separators, since
// the symbol becomes part of the proof id.
func validateSymbol(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return !strings.ContainsAny(s, " \t\n/\\")
}

func validateRequest(v *validator.Validate, req Request) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &InvalidRequestError{Op: req.name(), Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describeFieldError(fe))
	}
	return &InvalidRequestError{Op: req.name(), Fields: fields, Err: err}
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be > %s", field, fe.Param())
	case "proofid":
		return field + " must not contain path separators"
	case "symbol":
		return field + " must be a single symbol"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
