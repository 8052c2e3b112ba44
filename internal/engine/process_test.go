package engine_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kompass/internal/engine"
	"github.com/roach88/kompass/internal/proof"
)

const helperEnv = "KOMPASS_ENGINE_HELPER"

// TestHelperProcess is not a real test. It is re-executed by the process
// engine tests as a stand-in engine binary speaking the JSON-lines
// protocol.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		t.Skip("helper process")
	}
	runHelper(mode)
	os.Exit(0)
}

func runHelper(mode string) {
	type request struct {
		ID     int             `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	out := json.NewEncoder(os.Stdout)
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		var req request
		if err := json.Unmarshal(in.Bytes(), &req); err != nil {
			fmt.Fprintln(os.Stderr, "bad request:", err)
			os.Exit(3)
		}
		reply := map[string]any{"id": req.ID}
		switch req.Method {
		case "open":
			reply["result"] = map[string]any{}
		case "step":
			var step engine.StepRequest
			_ = json.Unmarshal(req.Params, &step)
			switch {
			case mode == "fail-step":
				reply["error"] = "rewrite failed"
			case mode == "bad-id":
				reply["id"] = req.ID + 100
			case mode == "crash":
				fmt.Fprintln(os.Stderr, "panic: out of memory")
				os.Exit(2)
			case step.Node == 1:
				reply["result"] = engine.StepResult{
					Kind:       engine.StepStep,
					Successors: []engine.Successor{{Cells: map[string]string{"k": "done"}, Depth: 2}},
				}
			default:
				reply["result"] = engine.StepResult{Kind: engine.StepProved}
			}
		case "run":
			reply["result"] = engine.RunResult{Cells: map[string]string{"k": "#EndProgram", "retVal": "42"}, Depth: 17}
		case "close":
			if mode == "hang" {
				time.Sleep(time.Minute)
			}
			reply["result"] = map[string]any{}
			_ = out.Encode(reply)
			return
		default:
			reply["error"] = "unknown method " + req.Method
		}
		_ = out.Encode(reply)
	}
}

func helperEngine(mode string) *engine.ProcessEngine {
	return &engine.ProcessEngine{
		Command:      os.Args[0],
		Args:         []string{"-test.run=^TestHelperProcess$"},
		Env:          []string{helperEnv + "=" + mode},
		CloseTimeout: 500 * time.Millisecond,
	}
}

// TestProcessEngine_Advance tests a full proof against a child process.
func TestProcessEngine_Advance(t *testing.T) {
	p := &engine.Prover{Engine: helperEngine("ok")}

	r, err := p.Advance(context.Background(), newRecord(), nil)
	require.NoError(t, err)
	assert.Equal(t, proof.VerdictPassed, r.Verdict())
	assert.Equal(t, 2, r.Iterations)
}

// TestProcessEngine_Run tests a concrete run.
func TestProcessEngine_Run(t *testing.T) {
	ctx := context.Background()
	sess, err := helperEngine("ok").Open(ctx, engine.OpenRequest{Program: "p.json", Start: "main"})
	require.NoError(t, err)

	res, err := sess.Run(ctx, engine.RunRequest{Start: "main"})
	require.NoError(t, err)
	assert.Equal(t, "42", res.Cells["retVal"])
	assert.Equal(t, 17, res.Depth)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close(), "second close is a no-op")
}

// TestProcessEngine_StepError tests that engine-reported errors surface
// as session errors.
func TestProcessEngine_StepError(t *testing.T) {
	p := &engine.Prover{Engine: helperEngine("fail-step")}

	_, err := p.Advance(context.Background(), newRecord(), nil)
	require.Error(t, err)

	var ee *engine.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engine.ErrCodeSession, ee.Code)
	assert.Equal(t, "step", ee.Op)
	assert.Contains(t, err.Error(), "rewrite failed")
}

// TestProcessEngine_MismatchedID tests protocol validation of responses.
func TestProcessEngine_MismatchedID(t *testing.T) {
	p := &engine.Prover{Engine: helperEngine("bad-id")}

	_, err := p.Advance(context.Background(), newRecord(), nil)
	require.Error(t, err)
	assert.True(t, engine.IsProtocolError(err))
}

// TestProcessEngine_Crash tests that engine stderr is carried in the error.
func TestProcessEngine_Crash(t *testing.T) {
	p := &engine.Prover{Engine: helperEngine("crash")}

	_, err := p.Advance(context.Background(), newRecord(), nil)
	require.Error(t, err)
	assert.True(t, engine.IsProtocolError(err))
	assert.Contains(t, err.Error(), "out of memory")
}

// TestProcessEngine_CloseTimeout tests that a hung engine is killed.
func TestProcessEngine_CloseTimeout(t *testing.T) {
	ctx := context.Background()
	sess, err := helperEngine("hang").Open(ctx, engine.OpenRequest{Program: "p.json"})
	require.NoError(t, err)

	start := time.Now()
	err = sess.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not exit")
	assert.Less(t, time.Since(start), 30*time.Second)
}

// TestProcessEngine_MissingBinary tests open failure for a bad command.
func TestProcessEngine_MissingBinary(t *testing.T) {
	eng := &engine.ProcessEngine{Command: "kompass-engine-does-not-exist"}

	_, err := eng.Open(context.Background(), engine.OpenRequest{Label: label})
	require.Error(t, err)
	assert.True(t, engine.IsEngineError(err))
}
