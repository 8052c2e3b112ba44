package artifact

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrArtifactMissing is wrapped by errors reporting an absent IR artifact.
	ErrArtifactMissing = errors.New("IR artifact missing")

	// ErrNoManifest means the project directory has no Cargo.toml.
	ErrNoManifest = errors.New("no Cargo.toml in project directory")
)

// BuildError reports a failure of the external build tool. Output carries
// the tool's own diagnostics.
type BuildError struct {
	Op     string // "metadata", "clean", "build", "manifest", "locate"
	Dir    string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s failed in %s: %v", e.Op, e.Dir, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// PreconditionError reports that a proof was requested without a rebuild
// and no artifact exists yet.
type PreconditionError struct {
	Artifact string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("IR artifact %s does not exist: run `kompass build` or pass --reload", e.Artifact)
}

func (e *PreconditionError) Unwrap() error {
	return ErrArtifactMissing
}

// IsBuildError returns true if err is or wraps a *BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// IsPreconditionError returns true if err is or wraps a *PreconditionError.
func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
