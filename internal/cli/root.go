package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/artifact"
	"github.com/roach88/kompass/internal/engine"
	"github.com/roach88/kompass/internal/render"
	"github.com/roach88/kompass/internal/session"
	"github.com/roach88/kompass/internal/telemetry"
)

// Version is stamped into telemetry resources.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Debug       bool
	Format      string // "json" | "text"
	Engine      string // engine command line
	TraceFile   string
	MetricsFile string

	// The fields below replace production capabilities (for testing).
	// Nil fields get the real implementation.
	EngineImpl engine.Engine
	BuildTool  artifact.BuildTool
	Viewer     session.Viewer
	IDs        engine.IDGenerator
	Now        func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kompass CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, so tests
// can preset capability overrides before flags are parsed.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kompass",
		Short: "kompass - proof sessions for Rust programs",
		Long: `Build a Rust project's IR artifact, explore the symbolic execution of its
functions as persistent proofs, and inspect the resulting proof graphs.

Proofs are stored on disk and resumed across invocations, so a bounded
run can be continued later with another prove.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "debug logging")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", "", "engine command line (default $"+EngineEnv+" or "+engine.DefaultCommand+")")
	cmd.PersistentFlags().StringVar(&opts.TraceFile, "trace-file", "", "write spans to this file as JSON")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	// Add subcommands
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewProveCommand(opts))
	cmd.AddCommand(NewProveRawCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewViewCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns the output formatter for cmd. Verbose logs go to stderr
// to avoid corrupting JSON.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	format := o.Format
	if format == "" {
		format = "text"
	}
	return &OutputFormatter{
		Format:    format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// app is everything one command invocation runs with.
type app struct {
	orch      *session.Orchestrator
	logger    *slog.Logger
	config    Config
	telemetry *telemetry.Telemetry
}

// setup loads project config and builds the orchestrator. Callers must
// close the returned app.
func (o *RootOptions) setup(cmd *cobra.Command, projectDir string) (*app, error) {
	cfg, err := LoadConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cmd.ErrOrStderr(), o.Verbose, o.Debug)

	tel := telemetry.Noop()
	if o.TraceFile != "" || o.MetricsFile != "" {
		tel, err = telemetry.Setup(commandContext(cmd), telemetry.Config{
			ServiceVersion: Version,
			TraceFile:      o.TraceFile,
			MetricsFile:    o.MetricsFile,
		})
		if err != nil {
			return nil, err
		}
	}

	eng := o.EngineImpl
	if eng == nil {
		command, args := EngineCommand(o.Engine, cfg)
		eng = &engine.ProcessEngine{Command: command, Args: args, Logger: logger}
		logger.Debug("engine configured", "command", command, "args", args)
	}

	viewer := o.Viewer
	if viewer == nil {
		viewer = render.TUI{Logger: logger}
	}

	// Running summaries stay off stdout when it carries JSON.
	var progress io.Writer = cmd.OutOrStdout()
	if o.Format == "json" {
		progress = cmd.ErrOrStderr()
	}

	orch := session.New(session.Config{
		Logger:    logger,
		Tracer:    tel.Tracer,
		Metrics:   tel.Metrics,
		Engine:    eng,
		BuildTool: o.BuildTool,
		Viewer:    viewer,
		Progress:  progress,
		IDs:       o.IDs,
		Now:       o.Now,
	})
	return &app{orch: orch, logger: logger, config: cfg, telemetry: tel}, nil
}

// close flushes telemetry. Failures are logged, never returned.
func (a *app) close(ctx context.Context) {
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Error("telemetry shutdown", "error", err)
	}
}

// commandContext returns the command's context, or Background when the
// command is executed without one (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// intFlag returns a pointer to the flag's value when it was set on the
// command line, otherwise fallback.
func intFlag(cmd *cobra.Command, name string, value int, fallback *int) *int {
	if cmd.Flags().Changed(name) {
		v := value
		return &v
	}
	return fallback
}

// stringFlag returns the flag's value when set on the command line or
// non-empty, otherwise fallback.
func stringFlag(cmd *cobra.Command, name, value, fallback string) string {
	if cmd.Flags().Changed(name) || fallback == "" {
		return value
	}
	return fallback
}
