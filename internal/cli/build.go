package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/session"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	ProjectDir string
	Rebuild    bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the project's IR artifact",
		Long: `Build the project's IR artifact with cargo and the stable-mir-json
rustc wrapper. The artifact is left at <target>/debug/linked.smir.json.

Example:
  kompass build -C ./demo
  kompass build --rebuild`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ProjectDir, "project-dir", "C", "", "project directory (default: working directory)")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "purge the build cache first")

	return cmd
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("build", err)
	}
	defer a.close(commandContext(cmd))

	res, err := a.orch.Execute(commandContext(cmd), session.BuildRequest{
		ProjectDir: opts.ProjectDir,
		Clean:      opts.Rebuild,
	})
	if err != nil {
		return formatter.Fail("build", err)
	}

	built := res.(*session.BuildResult)
	if formatter.Format == "json" {
		return formatter.Success(built)
	}
	fmt.Fprintf(formatter.Writer, "✓ Built %s\n", built.Artifact)
	return nil
}
