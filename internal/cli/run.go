package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/render"
	"github.com/roach88/kompass/internal/session"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ProjectDir  string
	File        string
	StartSymbol string
	Depth       int
	Full        bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a program concretely",
		Long: `Execute a program from a start symbol and print the final configuration.
Nothing is persisted.

The program is the project's IR artifact unless --file names another one.

Examples:
  kompass run --start-symbol main
  kompass run --file ./linked.smir.json --depth 1000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ProjectDir, "project-dir", "C", "", "project directory (default: working directory)")
	cmd.Flags().StringVar(&opts.File, "file", "", "IR artifact to run instead of the project's")
	cmd.Flags().StringVar(&opts.StartSymbol, "start-symbol", "main", "symbol to start execution from")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "maximum rewrite steps (default: unbounded)")
	cmd.Flags().BoolVar(&opts.Full, "full", false, "print bookkeeping cells")

	return cmd
}

func runProgram(opts *RunOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("run", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	res, err := a.orch.Execute(ctx, session.RunRequest{
		ProjectDir:  opts.ProjectDir,
		File:        opts.File,
		StartSymbol: stringFlag(cmd, "start-symbol", opts.StartSymbol, a.config.StartSymbol),
		Depth:       intFlag(cmd, "depth", opts.Depth, nil),
	})
	if err != nil {
		return formatter.Fail("run", err)
	}

	ran := res.(*session.RunResult)
	if formatter.Format == "json" {
		return formatter.Success(ran)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Program: %s\n", ran.Program)
	fmt.Fprintf(w, "Start: %s\n", ran.Start)
	fmt.Fprintf(w, "Depth: %d\n", ran.Depth)
	names := make([]string, 0, len(ran.Cells))
	for name := range ran.Cells {
		if opts.Full || !render.IsBookkeeping(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, strings.ReplaceAll(ran.Cells[name], "\n", "\n    "))
	}
	return nil
}
