package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the proof session instruments. A nil *Metrics records nothing.
type Metrics struct {
	// IterationsTotal counts advancement iterations by proof id.
	IterationsTotal metric.Int64Counter

	// NodesTotal counts proof-graph nodes created by proof id.
	NodesTotal metric.Int64Counter

	// VerdictsTotal counts finished sessions by verdict.
	VerdictsTotal metric.Int64Counter

	// SessionDuration records how long each proof session ran.
	SessionDuration metric.Float64Histogram
}

// NewMetrics registers all instruments with meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.IterationsTotal, err = meter.Int64Counter(
		"kompass_iterations_total",
		metric.WithDescription("Proof advancement iterations"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create iterations_total: %w", err)
	}

	m.NodesTotal, err = meter.Int64Counter(
		"kompass_nodes_total",
		metric.WithDescription("Proof graph nodes created"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create nodes_total: %w", err)
	}

	m.VerdictsTotal, err = meter.Int64Counter(
		"kompass_verdicts_total",
		metric.WithDescription("Proof sessions finished, by verdict"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create verdicts_total: %w", err)
	}

	m.SessionDuration, err = meter.Float64Histogram(
		"kompass_session_duration_seconds",
		metric.WithDescription("Proof session duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create session_duration_seconds: %w", err)
	}

	return m, nil
}

// RecordIteration counts one advancement iteration that created nodes.
func (m *Metrics) RecordIteration(ctx context.Context, proofID string, nodes int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("proof_id", proofID))
	m.IterationsTotal.Add(ctx, 1, attrs)
	if nodes > 0 {
		m.NodesTotal.Add(ctx, int64(nodes), attrs)
	}
}

// RecordSession counts a finished session and its duration.
func (m *Metrics) RecordSession(ctx context.Context, verdict string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("verdict", verdict))
	m.VerdictsTotal.Add(ctx, 1, attrs)
	m.SessionDuration.Record(ctx, d.Seconds(), attrs)
}
