package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/kompass/internal/artifact"
)

// FakeBuildTool stands in for cargo. Build writes a placeholder artifact
// under Target unless BuildErr is set.
type FakeBuildTool struct {
	mu sync.Mutex

	Target   string
	BuildErr error
	calls    []string
}

// NewFakeBuildTool returns a tool whose target directory is dir/target.
func NewFakeBuildTool(dir string) *FakeBuildTool {
	return &FakeBuildTool{Target: filepath.Join(dir, "target")}
}

// Metadata implements artifact.BuildTool.
func (f *FakeBuildTool) Metadata(_ context.Context, dir string) (artifact.Metadata, error) {
	f.record("metadata")
	return artifact.Metadata{TargetDirectory: f.Target, WorkspaceRoot: dir}, nil
}

// Build implements artifact.BuildTool.
func (f *FakeBuildTool) Build(_ context.Context, _ string) error {
	f.record("build")
	if f.BuildErr != nil {
		return f.BuildErr
	}
	return WriteArtifact(f.Target)
}

// Clean implements artifact.BuildTool.
func (f *FakeBuildTool) Clean(_ context.Context, _ string) error {
	f.record("clean")
	return os.RemoveAll(f.Target)
}

// Calls returns the operations invoked so far, in order.
func (f *FakeBuildTool) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeBuildTool) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

// WriteArtifact places a placeholder IR artifact where a build would.
func WriteArtifact(target string) error {
	path := filepath.Join(target, "debug", artifact.ArtifactName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(`{"name":"demo","items":[]}`), 0o644)
}

// NewProject creates a temporary Cargo project directory and returns it.
func NewProject(t interface {
	Helper()
	TempDir() string
	Fatalf(format string, args ...any)
}, name string) string {
	t.Helper()
	dir := t.TempDir()
	manifest := "[package]\nname = \"" + name + "\"\nversion = \"0.1.0\"\nedition = \"2021\"\n"
	if err := os.WriteFile(filepath.Join(dir, artifact.ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return dir
}
