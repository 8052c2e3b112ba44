package telemetry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	tel := Noop()
	require.NotNil(t, tel.Tracer)
	require.NotNil(t, tel.Metrics)

	ctx, span := StartSpan(context.Background(), tel.Tracer, "advance")
	tel.Metrics.RecordIteration(ctx, "ok", 2)
	RecordError(span, errors.New("boom"))
	span.End()

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordIteration(context.Background(), "ok", 1)
	m.RecordSession(context.Background(), "passed", time.Second)
}

func TestSetup_NilContext(t *testing.T) {
	var ctx context.Context
	_, err := Setup(ctx, Config{})
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestSetup_WritesTraceAndMetricsFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		ServiceVersion: "test",
		TraceFile:      filepath.Join(dir, "trace.json"),
		MetricsFile:    filepath.Join(dir, "metrics.prom"),
	}
	ctx := context.Background()

	tel, err := Setup(ctx, cfg)
	require.NoError(t, err)

	spanCtx, span := StartSpan(ctx, tel.Tracer, "advance")
	tel.Metrics.RecordIteration(spanCtx, "linked.smir.main", 3)
	tel.Metrics.RecordSession(spanCtx, "passed", 250*time.Millisecond)
	span.End()

	require.NoError(t, tel.Shutdown(ctx))

	traces, err := os.ReadFile(cfg.TraceFile)
	require.NoError(t, err)
	assert.Contains(t, string(traces), `"advance"`)

	metrics, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "kompass_iterations_total")
	assert.Contains(t, string(metrics), "kompass_nodes_total")
	assert.Contains(t, string(metrics), `verdict="passed"`)
}
