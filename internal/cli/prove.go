package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/session"
)

// boundFlags are the exploration bounds shared by prove and prove-raw.
type boundFlags struct {
	ProofDir      string
	BugReport     string
	MaxDepth      int
	MaxIterations int
	Reload        bool
}

func (b *boundFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.ProofDir, "proof-dir", "", "proof directory (default: <target>/proofs)")
	cmd.Flags().StringVar(&b.BugReport, "bug-report", "", "append an engine session transcript to this file")
	cmd.Flags().IntVar(&b.MaxDepth, "max-depth", 0, "rewrite steps per extension (default: the claim's depth, else unbounded)")
	cmd.Flags().IntVar(&b.MaxIterations, "max-iterations", 0, "extensions in this session (default: unbounded)")
	cmd.Flags().BoolVar(&b.Reload, "reload", false, "rebuild the artifact and start the proof afresh")
}

// ProveOptions holds flags for the prove command.
type ProveOptions struct {
	*RootOptions
	boundFlags
	ProjectDir  string
	StartSymbol string
}

// NewProveCommand creates the prove command.
func NewProveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Prove a function of the project",
		Long: `Advance the proof that a start symbol of the project runs to completion.

The proof is loaded from the proof directory when it exists and resumed
from its open branches. Without --reload the IR artifact must already
exist; run build first or pass --reload.

Exit codes:
  0 - Proof passed
  1 - Proof failed or the iteration bound left branches open
  2 - Command error (missing artifact, engine failure, etc.)

Examples:
  kompass prove --start-symbol main
  kompass prove --start-symbol ok --max-iterations 2
  kompass prove --reload --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProve(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ProjectDir, "project-dir", "C", "", "project directory (default: working directory)")
	cmd.Flags().StringVar(&opts.StartSymbol, "start-symbol", "main", "symbol to start execution from")
	opts.boundFlags.register(cmd)

	return cmd
}

func runProve(opts *ProveOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("prove", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	res, err := a.orch.Execute(ctx, session.ProveRequest{
		ProjectDir:    opts.ProjectDir,
		StartSymbol:   stringFlag(cmd, "start-symbol", opts.StartSymbol, a.config.StartSymbol),
		ProofDir:      stringFlag(cmd, "proof-dir", opts.ProofDir, a.config.ProofDir),
		BugReport:     opts.BugReport,
		MaxDepth:      intFlag(cmd, "max-depth", opts.MaxDepth, a.config.MaxDepth),
		MaxIterations: intFlag(cmd, "max-iterations", opts.MaxIterations, a.config.MaxIterations),
		Reload:        opts.Reload,
	})
	if err != nil {
		return formatter.Fail("prove", err)
	}

	proved := res.(*session.ProveResult)
	formatter.VerboseLog("Proof %s %s: %d nodes after %d iterations", proved.Label, proved.Origin, proved.Nodes, proved.Iterations)
	failed := 0
	if !proved.Passed {
		failed = 1
	}
	if formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer, proved.Summary)
	}
	return reportProofs(formatter, proved, failed, fmt.Sprintf("proof %s %s", proved.Label, proved.Verdict))
}

// ProveRawOptions holds flags for the prove-raw command.
type ProveRawOptions struct {
	*RootOptions
	boundFlags
	ProjectDir string
	Include    []string
	Exclude    []string
}

// NewProveRawCommand creates the prove-raw command.
func NewProveRawCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProveRawOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prove-raw <spec-file>",
		Short: "Prove the claims of a spec file",
		Long: `Advance the proof of every claim in a spec file (.cue, .yaml, .yml or .json),
in the order the file lists them. A claim that cannot be advanced is
reported and the batch moves on to the next one.

Claims that name no program are checked against the project's artifact.

Examples:
  kompass prove-raw claims.yaml
  kompass prove-raw claims.cue --include demo.ok --include demo.bad
  kompass prove-raw claims.yaml --exclude slow.loop --max-iterations 50`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProveRaw(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ProjectDir, "project-dir", "C", "", "project directory for claims without a program")
	cmd.Flags().StringArrayVar(&opts.Include, "include", nil, "only prove this label (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Exclude, "exclude", nil, "skip this label (repeatable)")
	opts.boundFlags.register(cmd)

	return cmd
}

// labelFailure is a batch claim that could not be advanced.
type labelFailure struct {
	Label   string `json:"label"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// batchReport is the JSON shape of a prove-raw result.
type batchReport struct {
	Claims []session.ProveResult `json:"claims"`
	Failed []labelFailure        `json:"failed"`
	Passed bool                  `json:"passed"`
}

func runProveRaw(opts *ProveRawOptions, specFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	a, err := opts.setup(cmd, opts.ProjectDir)
	if err != nil {
		return formatter.Fail("prove-raw", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	res, err := a.orch.Execute(ctx, session.ProveRawRequest{
		SpecFile:      specFile,
		ProjectDir:    opts.ProjectDir,
		Include:       opts.Include,
		Exclude:       opts.Exclude,
		ProofDir:      stringFlag(cmd, "proof-dir", opts.ProofDir, a.config.ProofDir),
		BugReport:     opts.BugReport,
		MaxDepth:      intFlag(cmd, "max-depth", opts.MaxDepth, a.config.MaxDepth),
		MaxIterations: intFlag(cmd, "max-iterations", opts.MaxIterations, a.config.MaxIterations),
		Reload:        opts.Reload,
	})
	if err != nil {
		return formatter.Fail("prove-raw", err)
	}

	batch := res.(*session.ProveRawResult)
	report := batchReport{
		Claims: batch.Claims,
		Failed: make([]labelFailure, 0, len(batch.Failed)),
		Passed: batch.Passed(),
	}
	for _, f := range batch.Failed {
		report.Failed = append(report.Failed, labelFailure{Label: f.Label, Code: ErrorCode(f.Err), Message: f.Err.Error()})
	}

	failed := len(report.Failed)
	for _, c := range batch.Claims {
		if !c.Passed {
			failed++
		}
	}
	total := len(batch.Claims) + len(batch.Failed)

	if formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "Proof Summary: %d passed, %d failed, %d total\n", total-failed, failed, total)
		for _, f := range report.Failed {
			fmt.Fprintf(formatter.Writer, "✗ %s\n  %s: %s\n", f.Label, f.Code, f.Message)
		}
	}
	return reportProofs(formatter, report, failed, fmt.Sprintf("%d claim(s) failed", failed))
}

// reportProofs finishes a proving command. In JSON mode it writes data in
// an envelope whose status reflects the verdicts. Any failed proof exits
// with ExitFailure.
func reportProofs(formatter *OutputFormatter, data any, failed int, message string) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: data}
		if failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{Code: ErrCodeProofFailed, Message: message}
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, message)
	}
	if formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer, "✓ All proofs passed")
	}
	return nil
}
