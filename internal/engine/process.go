package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultCommand is the engine binary used when none is configured.
const DefaultCommand = "kompass-engine"

// DefaultCloseTimeout is how long Close waits for the engine to exit before
// killing it.
const DefaultCloseTimeout = 5 * time.Second

// maxStderr bounds how much engine stderr is kept for error messages.
const maxStderr = 8 << 10

// ProcessEngine runs the engine as a child process and exchanges
// newline-delimited JSON messages over its stdin and stdout:
//
//	-> {"id":1,"method":"open","params":{...}}
//	<- {"id":1,"result":{...}}
//	<- {"id":1,"error":"..."}
//
// One process serves exactly one session.
type ProcessEngine struct {
	Command      string
	Args         []string
	Env          []string
	CloseTimeout time.Duration
	Logger       *slog.Logger
}

type rpcRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Open spawns the engine and sends the open request.
func (e *ProcessEngine) Open(ctx context.Context, req OpenRequest) (Session, error) {
	command := e.Command
	if command == "" {
		command = DefaultCommand
	}

	cmd := exec.CommandContext(ctx, command, e.Args...)
	cmd.Env = append(os.Environ(), e.Env...)
	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, sessionError("open", req.Label, 0, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, sessionError("open", req.Label, 0, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, sessionError("open", req.Label, 0, fmt.Errorf("start %s: %w", command, err))
	}

	timeout := e.CloseTimeout
	if timeout <= 0 {
		timeout = DefaultCloseTimeout
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &processSession{
		cmd:     cmd,
		stdin:   stdin,
		enc:     json.NewEncoder(stdin),
		dec:     json.NewDecoder(bufio.NewReader(stdout)),
		stderr:  stderr,
		label:   req.Label,
		timeout: timeout,
		logger:  logger.With("engine", command, "proof", req.Label),
	}
	s.logger.Debug("engine started", "pid", cmd.Process.Pid)

	if err := s.call("open", 0, req, nil); err != nil {
		return nil, errors.Join(err, s.terminate())
	}
	return s, nil
}

type processSession struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	enc     *json.Encoder
	dec     *json.Decoder
	stderr  *tailBuffer
	label   string
	timeout time.Duration
	logger  *slog.Logger

	nextID  int
	closed  bool
	reaped  bool
	reapErr error
}

func (s *processSession) Step(ctx context.Context, req StepRequest) (StepResult, error) {
	var res StepResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	err := s.call("step", req.Node, req, &res)
	return res, err
}

func (s *processSession) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	var res RunResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	err := s.call("run", 0, req, &res)
	return res, err
}

// Close asks the engine to shut down, then waits for it to exit. An engine
// that outlives the close timeout is killed. The reply to close is not
// awaited.
func (s *processSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.reaped {
		return nil
	}

	var sendErr error
	if err := s.enc.Encode(rpcRequest{ID: s.nextID + 1, Method: "close"}); err != nil {
		sendErr = sessionError("close", s.label, 0, err)
	}
	return errors.Join(sendErr, s.terminate())
}

// call writes one request and reads the matching response.
func (s *processSession) call(method string, node int, params any, result any) error {
	s.nextID++
	id := s.nextID

	if err := s.enc.Encode(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return sessionError(method, s.label, node, s.withStderr(err))
	}

	var resp rpcResponse
	if err := s.dec.Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		// stdout is gone; reap the process so its stderr is complete.
		_ = s.terminate()
		return protocolError(method, s.label, node, "read response: %v", s.withStderr(err))
	}
	if resp.ID != id {
		return protocolError(method, s.label, node, "response id %d does not match request id %d", resp.ID, id)
	}
	if resp.Error != "" {
		return sessionError(method, s.label, node, errors.New(resp.Error))
	}
	if result == nil {
		return nil
	}
	if len(resp.Result) == 0 {
		return protocolError(method, s.label, node, "empty result")
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return protocolError(method, s.label, node, "decode result: %v", err)
	}
	return nil
}

// terminate closes stdin and waits for the process, killing it after the
// close timeout. Only the first call waits.
func (s *processSession) terminate() error {
	if s.reaped {
		return s.reapErr
	}
	s.reaped = true
	s.reapErr = s.wait()
	return s.reapErr
}

func (s *processSession) wait() error {
	_ = s.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return sessionError("close", s.label, 0, s.withStderr(err))
		}
		s.logger.Debug("engine exited")
		return nil
	case <-time.After(s.timeout):
		s.logger.Warn("engine did not exit, killing it", "timeout", s.timeout)
		_ = s.cmd.Process.Kill()
		<-done
		return sessionError("close", s.label, 0, fmt.Errorf("engine did not exit within %s", s.timeout))
	}
}

func (s *processSession) withStderr(err error) error {
	tail := strings.TrimSpace(s.stderr.String())
	if tail == "" {
		return err
	}
	return fmt.Errorf("%w\nengine stderr:\n%s", err, tail)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
