package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the build configuration every project directory holds.
const ManifestFile = "Cargo.toml"

// ArtifactName is the IR artifact's file name under <target>/debug.
const ArtifactName = "linked.smir.json"

// Project is a resolved project directory.
type Project struct {
	Dir       string
	Name      string // empty for virtual workspaces
	TargetDir string
}

// ArtifactPath returns where the build leaves the IR artifact.
func (p Project) ArtifactPath() string {
	return filepath.Join(p.TargetDir, "debug", ArtifactName)
}

// DefaultProofDir returns the proof directory used when none is given.
func (p Project) DefaultProofDir() string {
	return filepath.Join(p.TargetDir, "proofs")
}

// Metadata is the subset of build tool metadata this package needs.
type Metadata struct {
	TargetDirectory string `json:"target_directory"`
	WorkspaceRoot   string `json:"workspace_root"`
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// LoadProject resolves dir (the working directory when empty) into a
// Project using the tool's metadata for the target directory.
func LoadProject(ctx context.Context, dir string, tool BuildTool) (Project, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Project{}, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Project{}, fmt.Errorf("resolve project directory: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(abs, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Project{}, &BuildError{Op: "manifest", Dir: abs, Err: ErrNoManifest}
		}
		return Project{}, &BuildError{Op: "manifest", Dir: abs, Err: err}
	}

	var manifest cargoManifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return Project{}, &BuildError{Op: "manifest", Dir: abs, Err: fmt.Errorf("parse %s: %w", ManifestFile, err)}
	}

	meta, err := tool.Metadata(ctx, abs)
	if err != nil {
		return Project{}, err
	}
	target := meta.TargetDirectory
	if target == "" {
		target = filepath.Join(abs, "target")
	}

	return Project{Dir: abs, Name: manifest.Package.Name, TargetDir: target}, nil
}
