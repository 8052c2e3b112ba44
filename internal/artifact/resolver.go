package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Resolver produces and locates the IR artifact of a project.
type Resolver struct {
	Tool   BuildTool
	Logger *slog.Logger
}

// NewResolver returns a resolver using tool. A nil logger discards output.
func NewResolver(tool BuildTool, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{Tool: tool, Logger: logger}
}

// Resolve builds the project, purging the build cache first when clean is
// set, and returns the artifact path. A build that reports success but
// leaves no artifact is a BuildError.
func (r *Resolver) Resolve(ctx context.Context, p Project, clean bool) (string, error) {
	if clean {
		r.Logger.Info("cleaning build cache", "dir", p.Dir)
		if err := r.Tool.Clean(ctx, p.Dir); err != nil {
			return "", err
		}
	}

	r.Logger.Info("building IR artifact", "dir", p.Dir, "clean", clean)
	if err := r.Tool.Build(ctx, p.Dir); err != nil {
		return "", err
	}

	path := p.ArtifactPath()
	if !fileExists(path) {
		return "", &BuildError{
			Op:  "build",
			Dir: p.Dir,
			Err: fmt.Errorf("%w: build succeeded but %s was not produced", ErrArtifactMissing, path),
		}
	}
	r.Logger.Debug("artifact ready", "path", path)
	return path, nil
}

// Require returns the artifact path if it already exists. It never builds.
func (r *Resolver) Require(p Project) (string, error) {
	path := p.ArtifactPath()
	if !fileExists(path) {
		return "", &PreconditionError{Artifact: path}
	}
	return path, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
