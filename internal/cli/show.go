package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/render"
	"github.com/roach88/kompass/internal/session"
)

// locationFlags select where a persisted proof is read from.
type locationFlags struct {
	ProjectDir string
	ProofDir   string
}

func (l *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&l.ProjectDir, "project-dir", "C", "", "project directory (default: working directory)")
	cmd.Flags().StringVar(&l.ProofDir, "proof-dir", "", "proof directory (default: <target>/proofs)")
}

func (l *locationFlags) proofDir(cmd *cobra.Command, cfg Config) string {
	return stringFlag(cmd, "proof-dir", l.ProofDir, cfg.ProofDir)
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	locationFlags
	Full   bool
	Output string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [proof-id]",
		Short: "Print a proof graph",
		Long: `Print a persisted proof as a tree walked from its initial node.
Without a proof id, list the persisted proofs.

Cells whose names start with '#' are bookkeeping and only printed with
--full. The proof is never created or modified.

Examples:
  kompass show
  kompass show linked.smir.main
  kompass show linked.smir.main --full -o proof.txt`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			return runShow(opts, id, cmd)
		},
	}

	opts.locationFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.Full, "full", false, "print bookkeeping cells")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the rendering to this file")

	return cmd
}

func runShow(opts *ShowOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("show", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	res, err := a.orch.Execute(ctx, session.ShowRequest{
		ProjectDir: opts.ProjectDir,
		ProofDir:   opts.proofDir(cmd, a.config),
		ID:         id,
		Full:       opts.Full,
	})
	if err != nil {
		return formatter.Fail("show", err)
	}
	shown := res.(*session.ShowResult)

	if id == "" {
		if formatter.Format == "json" {
			return formatter.Success(shown)
		}
		if len(shown.Proofs) == 0 {
			fmt.Fprintln(formatter.Writer, "No proofs found")
			return nil
		}
		for _, p := range shown.Proofs {
			fmt.Fprintln(formatter.Writer, p)
		}
		return nil
	}

	if opts.Output != "" {
		text := strings.Join(shown.Lines, "\n") + "\n"
		if err := os.WriteFile(opts.Output, []byte(text), 0o644); err != nil {
			if werr := formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil); werr != nil {
				return werr
			}
			return WrapExitError(ExitCommandError, "show failed", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(map[string]any{"id": shown.ID, "output": opts.Output, "nodes": render.CountNodes(shown.Lines)})
		}
		fmt.Fprintf(formatter.Writer, "✓ Wrote %s\n", opts.Output)
		return nil
	}

	if formatter.Format == "json" {
		return formatter.Success(shown)
	}

	lines := shown.Lines
	if f, ok := formatter.Writer.(*os.File); ok && render.IsTerminal(f) {
		lines = render.Styled(lines)
	}
	for _, l := range lines {
		fmt.Fprintln(formatter.Writer, l)
	}
	return nil
}

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	locationFlags
	Full  bool
	Watch bool
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view <proof-id>",
		Short: "Browse a proof graph interactively",
		Long: `Open a read-only terminal viewer on a persisted proof.

Keys: j/k move, g/G jump to first/last node, f toggles bookkeeping cells,
q quits. With --watch the view reloads whenever the proof file changes,
for example while another terminal runs prove.

Example:
  kompass view linked.smir.main --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, args[0], cmd)
		},
	}

	opts.locationFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.Full, "full", false, "start with bookkeeping cells shown")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload when the proof file changes")

	return cmd
}

func runView(opts *ViewOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("view", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	res, err := a.orch.Execute(ctx, session.ViewRequest{
		ProjectDir: opts.ProjectDir,
		ProofDir:   opts.proofDir(cmd, a.config),
		ID:         id,
		Full:       opts.Full,
		Watch:      opts.Watch,
	})
	if err != nil {
		return formatter.Fail("view", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	return nil
}
