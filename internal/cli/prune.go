package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/session"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	locationFlags
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune <proof-id> <node-id>",
		Short: "Remove a node and its exclusive descendants",
		Long: `Remove a node from a persisted proof together with every node reachable
only through it. A parent left without successors becomes pending again,
so the next prove re-explores it.

Example:
  kompass prune linked.smir.main 3`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(opts, args[0], args[1], cmd)
		},
	}

	opts.locationFlags.register(cmd)

	return cmd
}

func runPrune(opts *PruneOptions, id, node string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	nodeID, err := strconv.Atoi(node)
	if err != nil {
		if werr := formatter.Error(ErrCodeInvalid, fmt.Sprintf("invalid node id %q", node), nil); werr != nil {
			return werr
		}
		return WrapExitError(ExitCommandError, "prune failed", err)
	}

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("prune", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	res, err := a.orch.Execute(ctx, session.PruneRequest{
		ProjectDir: opts.ProjectDir,
		ProofDir:   opts.proofDir(cmd, a.config),
		ID:         id,
		NodeID:     nodeID,
	})
	if err != nil {
		return formatter.Fail("prune", err)
	}

	pruned := res.(*session.PruneResult)
	if formatter.Format == "json" {
		return formatter.Success(pruned)
	}
	fmt.Fprintf(formatter.Writer, "✓ Pruned %d node(s) from %s\n", pruned.Pruned, pruned.ID)
	return nil
}
