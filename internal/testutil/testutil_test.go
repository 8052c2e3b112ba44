package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kompass/internal/artifact"
	"github.com/roach88/kompass/internal/engine"
)

func TestDeterministicClock_Advances(t *testing.T) {
	clock := NewDeterministicClock(0)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceGenerator("")

	var wg sync.WaitGroup
	ids := make(chan string, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- gen.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
	assert.True(t, seen["session-1"])
	assert.True(t, seen["session-100"])
}

func TestScriptedEngine_AnswersFromScript(t *testing.T) {
	eng := NewScriptedEngine().WithScript("demo.main", PassingScript())
	ctx := context.Background()

	sess, err := eng.Open(ctx, engine.OpenRequest{Label: "demo.main"})
	require.NoError(t, err)

	res, err := sess.Step(ctx, engine.StepRequest{Node: 1})
	require.NoError(t, err)
	assert.Equal(t, engine.StepStep, res.Kind)
	require.Len(t, res.Successors, 1)

	res, err = sess.Step(ctx, engine.StepRequest{Node: 9})
	require.NoError(t, err)
	assert.Equal(t, engine.StepStuck, res.Kind, "unscripted nodes are stuck")

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, 1, eng.Closes(), "double close counts once")

	_, err = sess.Step(ctx, engine.StepRequest{Node: 1})
	assert.Error(t, err)
}

func TestScriptedEngine_ResultsAreCopies(t *testing.T) {
	eng := NewScriptedEngine().WithScript("demo.main", PassingScript())
	ctx := context.Background()
	sess, err := eng.Open(ctx, engine.OpenRequest{Label: "demo.main"})
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Step(ctx, engine.StepRequest{Node: 1})
	require.NoError(t, err)
	res.Successors[0].Cells["k"] = "mutated"

	again, err := sess.Step(ctx, engine.StepRequest{Node: 1})
	require.NoError(t, err)
	assert.Equal(t, "#return", again.Successors[0].Cells["k"])
}

func TestFakeBuildTool_BuildWritesArtifact(t *testing.T) {
	dir := NewProject(t, "demo")
	tool := NewFakeBuildTool(dir)
	ctx := context.Background()

	require.NoError(t, tool.Build(ctx, dir))
	_, err := os.Stat(filepath.Join(tool.Target, "debug", artifact.ArtifactName))
	require.NoError(t, err)

	require.NoError(t, tool.Clean(ctx, dir))
	_, err = os.Stat(tool.Target)
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, []string{"build", "clean"}, tool.Calls())
}
