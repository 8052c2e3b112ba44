package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// BuildTool is the external collaborator that compiles a project into
// the IR artifact.
type BuildTool interface {
	// Metadata reports project metadata, at minimum the target directory.
	Metadata(ctx context.Context, dir string) (Metadata, error)

	// Build runs an incremental build.
	Build(ctx context.Context, dir string) error

	// Clean purges the build cache.
	Clean(ctx context.Context, dir string) error
}

// CargoTool drives cargo with the stable-MIR JSON driver as RUSTC.
type CargoTool struct {
	// Cargo is the cargo executable. Defaults to "cargo" on PATH.
	Cargo string

	// Rustc overrides the compiler driver. When empty the first *.sh
	// script under ~/.stable-mir-json is used.
	Rustc string
}

// Metadata runs `cargo metadata --format-version 1 --no-deps`.
func (c *CargoTool) Metadata(ctx context.Context, dir string) (Metadata, error) {
	out, err := c.run(ctx, "metadata", dir, nil, "metadata", "--format-version", "1", "--no-deps")
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return Metadata{}, &BuildError{Op: "metadata", Dir: dir, Err: fmt.Errorf("decode cargo metadata: %w", err)}
	}
	return meta, nil
}

// Build runs `cargo build` with RUSTC pointing at the stable-MIR driver.
func (c *CargoTool) Build(ctx context.Context, dir string) error {
	rustc := c.Rustc
	if rustc == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return &BuildError{Op: "locate", Dir: dir, Err: err}
		}
		if rustc, err = StableMIRScript(home); err != nil {
			return &BuildError{Op: "locate", Dir: dir, Err: err}
		}
	}
	_, err := c.run(ctx, "build", dir, []string{"RUSTC=" + rustc}, "build")
	return err
}

// Clean runs `cargo clean`.
func (c *CargoTool) Clean(ctx context.Context, dir string) error {
	_, err := c.run(ctx, "clean", dir, nil, "clean")
	return err
}

// StableMIRScript finds the stable-MIR JSON driver script installed under
// home/.stable-mir-json.
func StableMIRScript(home string) (string, error) {
	installDir := filepath.Join(home, ".stable-mir-json")
	matches, err := filepath.Glob(filepath.Join(installDir, "*.sh"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("stable-mir-json driver not installed: no *.sh script in %s", installDir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func (c *CargoTool) run(ctx context.Context, op, dir string, extraEnv []string, args ...string) ([]byte, error) {
	cargo := c.Cargo
	if cargo == "" {
		cargo = "cargo"
	}

	cmd := exec.CommandContext(ctx, cargo, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			err = fmt.Errorf("cargo %s exited with status %d", args[0], exitErr.ExitCode())
		}
		return nil, &BuildError{Op: op, Dir: dir, Output: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
