package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/session"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	locationFlags
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [proof-id]",
		Short: "List recorded proof sessions",
		Long: `List the proof sessions recorded in the proof directory's ledger, newest
first. Each prove or prove-raw claim adds one session.

Examples:
  kompass history
  kompass history linked.smir.main --limit 5`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(opts, id, cmd)
		},
	}

	opts.locationFlags.register(cmd)
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "show at most this many sessions (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("history", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	res, err := a.orch.Execute(ctx, session.HistoryRequest{
		ProjectDir: opts.ProjectDir,
		ProofDir:   opts.proofDir(cmd, a.config),
		ID:         id,
		Limit:      opts.Limit,
	})
	if err != nil {
		return formatter.Fail("history", err)
	}

	hist := res.(*session.HistoryResult)
	if formatter.Format == "json" {
		return formatter.Success(hist)
	}

	w := formatter.Writer
	if len(hist.Sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, s := range hist.Sessions {
		line := fmt.Sprintf("%s  %-30s %-8s iterations=%d (+%d) nodes=%d took=%s  %s",
			s.Started().UTC().Format(time.RFC3339), s.Label, s.Verdict,
			s.Iterations, s.Advanced, s.Nodes, s.Duration(), s.ID)
		if s.Error != "" {
			line += "\n    error: " + s.Error
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
