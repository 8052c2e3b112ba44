package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/kompass/internal/proof"
	"github.com/roach88/kompass/internal/telemetry"
)

// Prover advances proof records against an Engine.
type Prover struct {
	Engine Engine

	// MaxDepth bounds rewrite steps per extension. When nil the claim's own
	// depth applies, and a claim depth of 0 means no bound.
	MaxDepth *int

	// BugReport, when set, receives a transcript of every session.
	BugReport string

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Metrics
}

// Advance explores the record's frontier until the verdict is terminal or
// maxIterations extensions have been made in this call. A nil maxIterations
// is unbounded; zero returns the record untouched without opening a
// session.
//
// The record is modified in place and returned. Iterations accumulates
// across calls; Passed and Summary are refreshed before returning, even on
// error. A failed Close is joined into the returned error.
func (p *Prover) Advance(ctx context.Context, record *proof.Record, maxIterations *int) (_ *proof.Record, err error) {
	if record == nil {
		return nil, errors.New("advance: nil record")
	}
	logger := p.logger()
	defer record.Refresh()

	if maxIterations != nil && *maxIterations <= 0 {
		logger.Debug("iteration budget is zero, leaving proof untouched", "proof", record.ID)
		return record, nil
	}
	if record.Verdict().IsTerminal() || len(record.Graph.Frontier()) == 0 {
		logger.Debug("proof has nothing to explore", "proof", record.ID, "verdict", record.Verdict())
		return record, nil
	}
	if p.Engine == nil {
		return record, errors.New("advance: no engine configured")
	}

	ctx, span := telemetry.StartSpan(ctx, p.Tracer, "advance",
		attribute.String("proof.id", record.ID),
		attribute.Int("proof.iterations", record.Iterations),
	)
	defer span.End()

	sess, err := Open(ctx, p.Engine, OpenRequest{
		Program:   record.Claim.Program,
		Label:     record.ID,
		Start:     record.Claim.Start,
		BugReport: p.BugReport,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return record, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			if !IsEngineError(cerr) {
				cerr = sessionError("close", record.ID, 0, cerr)
			}
			telemetry.RecordError(span, cerr)
			err = errors.Join(err, cerr)
		}
	}()

	depth := p.depth(record)
	budget := NewBudget(maxIterations)
	for {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return record, err
		}
		if record.Verdict().IsTerminal() {
			break
		}
		frontier := record.Graph.Frontier()
		if len(frontier) == 0 {
			break
		}
		if err := budget.Check(record.ID); err != nil {
			limit, _ := budget.Limit()
			logger.Info("iteration budget spent", "proof", record.ID, "iterations", budget.Current(), "limit", limit)
			break
		}

		node := frontier[0]
		if err := p.extend(ctx, sess, record, node, depth); err != nil {
			telemetry.RecordError(span, err, attribute.Int("node.id", node))
			return record, err
		}
		record.Iterations++
		p.Metrics.RecordIteration(ctx, record.ID, len(record.Graph.Nodes))
		logger.Debug("extended node",
			"proof", record.ID,
			"node", node,
			"nodes", len(record.Graph.Nodes),
			"iteration", record.Iterations,
		)
	}

	span.SetAttributes(
		attribute.String("proof.verdict", string(record.Verdict())),
		attribute.Int("proof.nodes", len(record.Graph.Nodes)),
		attribute.Int("proof.session_iterations", budget.Current()),
		attribute.Bool("proof.budget_exhausted", budget.Exhausted()),
	)
	if limit, bounded := budget.Limit(); bounded {
		span.SetAttributes(attribute.Int("proof.iteration_limit", limit))
	}
	return record, nil
}

// extend steps a single pending node and folds the answer into the graph.
func (p *Prover) extend(ctx context.Context, sess Session, record *proof.Record, id, depth int) error {
	n, ok := record.Graph.Node(id)
	if !ok {
		return &proof.UnknownNodeError{ID: id}
	}

	ctx, span := telemetry.StartSpan(ctx, p.Tracer, "engine.step",
		attribute.String("proof.id", record.ID),
		attribute.Int("node.id", id),
	)
	defer span.End()

	res, err := sess.Step(ctx, StepRequest{Node: id, Cells: maps.Clone(n.Cells), Depth: depth})
	if err != nil {
		if !IsEngineError(err) {
			err = sessionError("step", record.ID, id, err)
		}
		telemetry.RecordError(span, err)
		return err
	}
	span.SetAttributes(attribute.String("step.kind", string(res.Kind)))

	switch res.Kind {
	case StepStep, StepBranch:
		if len(res.Successors) == 0 {
			reason := res.Reason
			if reason == "" {
				reason = "no successors"
			}
			return record.Graph.SetStatus(id, proof.StatusStuck, reason)
		}
		if res.Kind == StepStep && len(res.Successors) > 1 {
			return protocolError("step", record.ID, id, "step answered with %d successors", len(res.Successors))
		}
		for _, s := range res.Successors {
			target := record.Graph.AddNode(maps.Clone(s.Cells))
			if err := record.Graph.AddEdge(id, target, s.Depth, s.Condition); err != nil {
				return err
			}
		}
		return record.Graph.SetStatus(id, proof.StatusExpanded, "")
	case StepProved:
		return record.Graph.SetStatus(id, proof.StatusProved, res.Reason)
	case StepFailing:
		return record.Graph.SetStatus(id, proof.StatusFailing, res.Reason)
	case StepStuck:
		return record.Graph.SetStatus(id, proof.StatusStuck, res.Reason)
	case StepVacuous:
		return record.Graph.SetStatus(id, proof.StatusVacuous, res.Reason)
	default:
		return protocolError("step", record.ID, id, "unknown step kind %q", res.Kind)
	}
}

func (p *Prover) depth(record *proof.Record) int {
	if p.MaxDepth != nil {
		return *p.MaxDepth
	}
	if record.Claim.Depth > 0 {
		return record.Claim.Depth
	}
	return 0
}

func (p *Prover) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}
