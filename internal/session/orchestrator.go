package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/kompass/internal/artifact"
	"github.com/roach88/kompass/internal/claims"
	"github.com/roach88/kompass/internal/engine"
	"github.com/roach88/kompass/internal/proof"
	"github.com/roach88/kompass/internal/render"
	"github.com/roach88/kompass/internal/store"
	"github.com/roach88/kompass/internal/telemetry"
)

// Viewer runs the interactive proof viewer.
type Viewer interface {
	View(ctx context.Context, cfg render.ViewConfig) error
}

// Config holds the capabilities an Orchestrator is built from. Only Engine
// and BuildTool have no usable default.
type Config struct {
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   *telemetry.Metrics
	Engine    engine.Engine
	BuildTool artifact.BuildTool
	Viewer    Viewer

	// Progress receives the running summary of batch proofs.
	Progress io.Writer

	// IDs names ledger sessions. Defaults to UUIDv7.
	IDs engine.IDGenerator

	// Now stamps ledger sessions. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator executes Requests. It holds no state between requests other
// than what the proof store keeps on disk.
type Orchestrator struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.Metrics
	engine   engine.Engine
	tool     artifact.BuildTool
	viewer   Viewer
	progress io.Writer
	ids      engine.IDGenerator
	now      func() time.Time
	validate *validator.Validate
}

// New creates an Orchestrator from cfg, filling in defaults.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		logger:   cfg.Logger,
		tracer:   cfg.Tracer,
		metrics:  cfg.Metrics,
		engine:   cfg.Engine,
		tool:     cfg.BuildTool,
		viewer:   cfg.Viewer,
		progress: cfg.Progress,
		ids:      cfg.IDs,
		now:      cfg.Now,
		validate: newValidator(),
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.tool == nil {
		o.tool = &artifact.CargoTool{}
	}
	if o.viewer == nil {
		o.viewer = render.TUI{Logger: o.logger}
	}
	if o.progress == nil {
		o.progress = io.Discard
	}
	if o.ids == nil {
		o.ids = engine.UUIDv7Generator{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Execute validates req and runs the matching operation.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (Result, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownRequest)
	}
	if err := validateRequest(o.validate, req); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case BuildRequest:
		return wrap(o.build(ctx, r))
	case ProveRequest:
		return wrap(o.prove(ctx, r))
	case ProveRawRequest:
		return wrap(o.proveRaw(ctx, r))
	case ShowRequest:
		return wrap(o.show(ctx, r))
	case ViewRequest:
		return wrap(o.view(ctx, r))
	case PruneRequest:
		return wrap(o.prune(ctx, r))
	case RunRequest:
		return wrap(o.run(ctx, r))
	case HistoryRequest:
		return wrap(o.history(ctx, r))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownRequest, req)
	}
}

// wrap keeps a nil variant pointer from becoming a non-nil Result.
func wrap[T Result](res T, err error) (Result, error) {
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) resolver() *artifact.Resolver {
	return artifact.NewResolver(o.tool, o.logger)
}

func (o *Orchestrator) build(ctx context.Context, r BuildRequest) (*BuildResult, error) {
	p, err := artifact.LoadProject(ctx, r.ProjectDir, o.tool)
	if err != nil {
		return nil, err
	}
	path, err := o.resolver().Resolve(ctx, p, r.Clean)
	if err != nil {
		return nil, err
	}
	return &BuildResult{Artifact: path}, nil
}

// advanceOptions are the per-claim knobs shared by prove and prove-raw.
type advanceOptions struct {
	bugReport     string
	maxDepth      *int
	maxIterations *int
	forceNew      bool
}

func (o *Orchestrator) prove(ctx context.Context, r ProveRequest) (*ProveResult, error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "prove", attribute.String("start_symbol", r.StartSymbol))
	defer span.End()

	p, err := artifact.LoadProject(ctx, r.ProjectDir, o.tool)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var art string
	if r.Reload {
		art, err = o.resolver().Resolve(ctx, p, true)
	} else {
		art, err = o.resolver().Require(p)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	proofDir := r.ProofDir
	if proofDir == "" {
		proofDir = p.DefaultProofDir()
	}
	st := store.New(proofDir)
	ledger := o.openLedger(proofDir)
	if ledger != nil {
		defer ledger.Close()
	}

	res, err := o.advance(ctx, st, ledger, claims.FromArtifact(art, r.StartSymbol), advanceOptions{
		bugReport:     r.BugReport,
		maxDepth:      r.MaxDepth,
		maxIterations: r.MaxIterations,
		forceNew:      r.Reload,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("proof.verdict", string(res.Verdict)))
	return res, nil
}

func (o *Orchestrator) proveRaw(ctx context.Context, r ProveRawRequest) (*ProveRawResult, error) {
	ctx, span := telemetry.StartSpan(ctx, o.tracer, "prove-raw", attribute.String("spec", r.SpecFile))
	defer span.End()

	idx, err := claims.Load(r.SpecFile)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ProveRawResult{Claims: []ProveResult{}, Failed: []LabelError{}}
	for _, label := range r.Include {
		if _, err := idx.Get(label); err != nil {
			result.Failed = append(result.Failed, LabelError{Label: label, Err: err})
			fmt.Fprintf(o.progress, "Proof %s: %v\n", label, err)
		}
	}

	labels := idx.Labels(r.Include, r.Exclude)
	o.logger.Info("selected claims", "spec", idx.Source(), "selected", len(labels), "total", idx.Len())

	proofDir, art, err := o.batchLocations(ctx, r, idx, labels)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	st := store.New(proofDir)
	ledger := o.openLedger(proofDir)
	if ledger != nil {
		defer ledger.Close()
	}

	for _, label := range labels {
		c, err := idx.Get(label)
		if err == nil {
			if c.Program == "" {
				c.Program = art
			}
			var res *ProveResult
			res, err = o.advance(ctx, st, ledger, c, advanceOptions{
				bugReport:     r.BugReport,
				maxDepth:      r.MaxDepth,
				maxIterations: r.MaxIterations,
				forceNew:      r.Reload,
			})
			if err == nil {
				result.Claims = append(result.Claims, *res)
				fmt.Fprintf(o.progress, "%s\n", res.Summary)
				continue
			}
		}
		o.logger.Error("claim failed", "label", label, "error", err)
		result.Failed = append(result.Failed, LabelError{Label: label, Err: err})
		fmt.Fprintf(o.progress, "Proof %s: error: %v\n", label, err)
	}

	span.SetAttributes(
		attribute.Int("claims.proved", len(result.Claims)),
		attribute.Int("claims.failed", len(result.Failed)),
	)
	return result, nil
}

// batchLocations resolves the proof directory of a batch and, when any
// selected claim names no program, the project artifact it defaults to.
// Without a project the proof directory sits next to the spec file.
func (o *Orchestrator) batchLocations(ctx context.Context, r ProveRawRequest, idx *claims.Index, labels []string) (string, string, error) {
	needArtifact := false
	for _, label := range labels {
		if c, err := idx.Get(label); err == nil && c.Program == "" {
			needArtifact = true
			break
		}
	}
	needProject := needArtifact || r.ProofDir == ""
	if !needProject {
		return r.ProofDir, "", nil
	}

	p, err := artifact.LoadProject(ctx, r.ProjectDir, o.tool)
	if err != nil {
		if !needArtifact && r.ProjectDir == "" && errors.Is(err, artifact.ErrNoManifest) {
			return filepath.Join(filepath.Dir(r.SpecFile), "proofs"), "", nil
		}
		return "", "", err
	}

	proofDir := r.ProofDir
	if proofDir == "" {
		proofDir = p.DefaultProofDir()
	}
	if !needArtifact {
		return proofDir, "", nil
	}

	var art string
	if r.Reload {
		art, err = o.resolver().Resolve(ctx, p, true)
	} else {
		art, err = o.resolver().Require(p)
	}
	if err != nil {
		return "", "", err
	}
	return proofDir, art, nil
}

// advance runs one proof session for a claim: load or create the record,
// advance it, persist it and note the session in the ledger. A failed
// advance is not persisted.
func (o *Orchestrator) advance(ctx context.Context, st *store.Store, ledger *store.Ledger, c claims.Claim, opts advanceOptions) (*ProveResult, error) {
	started := o.now()
	logger := o.logger.With("proof", c.Label)

	rec, origin, err := st.LoadOrCreate(c.Label, c, opts.forceNew)
	if err != nil {
		return nil, err
	}
	logger.Debug("proof record ready", "origin", origin, "nodes", len(rec.Graph.Nodes), "iterations", rec.Iterations)

	before := rec.Iterations
	prover := &engine.Prover{
		Engine:    o.engine,
		MaxDepth:  opts.maxDepth,
		BugReport: opts.bugReport,
		Logger:    logger,
		Tracer:    o.tracer,
		Metrics:   o.metrics,
	}
	rec, err = prover.Advance(ctx, rec, opts.maxIterations)
	if err == nil {
		err = st.Persist(rec)
	}

	finished := o.now()
	o.metrics.RecordSession(ctx, string(rec.Verdict()), finished.Sub(started))
	o.recordSession(ctx, ledger, rec, origin, rec.Iterations-before, started, finished, err)

	if err != nil {
		return nil, err
	}
	logger.Info("proof advanced",
		"verdict", rec.Verdict(),
		"iterations", rec.Iterations,
		"nodes", len(rec.Graph.Nodes),
	)
	return proveResult(rec, origin), nil
}

// openLedger opens the session ledger under proofDir. The ledger is
// bookkeeping only: failures are logged and a nil ledger is returned.
func (o *Orchestrator) openLedger(proofDir string) *store.Ledger {
	if err := os.MkdirAll(proofDir, 0o755); err != nil {
		o.logger.Warn("session ledger unavailable", "dir", proofDir, "error", err)
		return nil
	}
	l, err := store.OpenLedger(filepath.Join(proofDir, store.LedgerFile))
	if err != nil {
		o.logger.Warn("session ledger unavailable", "dir", proofDir, "error", err)
		return nil
	}
	return l
}

func (o *Orchestrator) recordSession(ctx context.Context, ledger *store.Ledger, rec *proof.Record, origin proof.Origin, advanced int, started, finished time.Time, sessErr error) {
	if ledger == nil {
		return
	}
	digest, err := proof.Digest(rec)
	if err != nil {
		o.logger.Warn("digest proof record", "proof", rec.ID, "error", err)
	}
	s := store.Session{
		ID:         o.ids.Generate(),
		Label:      rec.ID,
		Origin:     string(origin),
		Verdict:    string(rec.Verdict()),
		Passed:     rec.Passed,
		Iterations: rec.Iterations,
		Advanced:   advanced,
		Nodes:      len(rec.Graph.Nodes),
		Digest:     digest,
		StartedAt:  started.UnixMilli(),
		FinishedAt: finished.UnixMilli(),
	}
	if sessErr != nil {
		s.Error = sessErr.Error()
	}
	if err := ledger.RecordSession(ctx, s); err != nil {
		o.logger.Warn("record session", "proof", rec.ID, "error", err)
	}
}

// proofDir returns dir, or the project's default proof directory.
func (o *Orchestrator) proofDir(ctx context.Context, dir, projectDir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	p, err := artifact.LoadProject(ctx, projectDir, o.tool)
	if err != nil {
		return "", err
	}
	return p.DefaultProofDir(), nil
}

func (o *Orchestrator) show(ctx context.Context, r ShowRequest) (*ShowResult, error) {
	dir, err := o.proofDir(ctx, r.ProofDir, r.ProjectDir)
	if err != nil {
		return nil, err
	}
	st := store.New(dir)
	if r.ID == "" {
		ids, err := st.List()
		if err != nil {
			return nil, err
		}
		return &ShowResult{Proofs: ids}, nil
	}
	rec, err := st.Load(r.ID)
	if err != nil {
		return nil, err
	}
	return &ShowResult{ID: rec.ID, Lines: render.Show(rec, render.Options{Full: r.Full})}, nil
}

func (o *Orchestrator) view(ctx context.Context, r ViewRequest) (*ViewResult, error) {
	dir, err := o.proofDir(ctx, r.ProofDir, r.ProjectDir)
	if err != nil {
		return nil, err
	}
	st := store.New(dir)
	rec, err := st.Load(r.ID)
	if err != nil {
		return nil, err
	}

	cfg := render.ViewConfig{Record: rec, Full: r.Full}
	if r.Watch {
		path, err := st.Path(r.ID)
		if err != nil {
			return nil, err
		}
		cfg.WatchPath = path
		cfg.Reload = func() (*proof.Record, error) { return st.Load(r.ID) }
	}
	if err := o.viewer.View(ctx, cfg); err != nil {
		return nil, err
	}
	return &ViewResult{ID: rec.ID}, nil
}

func (o *Orchestrator) prune(ctx context.Context, r PruneRequest) (*PruneResult, error) {
	dir, err := o.proofDir(ctx, r.ProofDir, r.ProjectDir)
	if err != nil {
		return nil, err
	}
	st := store.New(dir)
	rec, err := st.Load(r.ID)
	if err != nil {
		return nil, err
	}
	n, err := st.Prune(rec, r.NodeID)
	if err != nil {
		return nil, err
	}
	if err := st.Persist(rec); err != nil {
		return nil, err
	}
	o.logger.Info("pruned proof", "proof", rec.ID, "node", r.NodeID, "removed", n)
	return &PruneResult{ID: rec.ID, NodeID: r.NodeID, Pruned: n}, nil
}

func (o *Orchestrator) run(ctx context.Context, r RunRequest) (_ *RunResult, err error) {
	program := r.File
	if program == "" {
		p, err := artifact.LoadProject(ctx, r.ProjectDir, o.tool)
		if err != nil {
			return nil, err
		}
		if program, err = o.resolver().Require(p); err != nil {
			return nil, err
		}
	}
	if o.engine == nil {
		return nil, errors.New("run: no engine configured")
	}

	ctx, span := telemetry.StartSpan(ctx, o.tracer, "run", attribute.String("start_symbol", r.StartSymbol))
	defer span.End()

	sess, err := engine.Open(ctx, o.engine, engine.OpenRequest{Program: program, Start: r.StartSymbol})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	depth := 0
	if r.Depth != nil {
		depth = *r.Depth
	}
	res, err := sess.Run(ctx, engine.RunRequest{Start: r.StartSymbol, Depth: depth})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &RunResult{Program: program, Start: r.StartSymbol, Depth: res.Depth, Cells: res.Cells}, nil
}

func (o *Orchestrator) history(ctx context.Context, r HistoryRequest) (*HistoryResult, error) {
	dir, err := o.proofDir(ctx, r.ProofDir, r.ProjectDir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, store.LedgerFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &HistoryResult{Sessions: []store.Session{}}, nil
	}

	ledger, err := store.OpenLedger(path)
	if err != nil {
		return nil, &store.IOError{Op: "history", Path: path, Err: err}
	}
	defer ledger.Close()

	sessions, err := ledger.ListSessions(ctx, r.ID, r.Limit)
	if err != nil {
		return nil, &store.IOError{Op: "history", Label: r.ID, Path: path, Err: err}
	}
	return &HistoryResult{Sessions: sessions}, nil
}
