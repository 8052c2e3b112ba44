package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Open starts a session on eng. Errors that are not already engine errors
// are wrapped as open failures. When req.BugReport is set the returned
// session appends its transcript to that file.
func Open(ctx context.Context, eng Engine, req OpenRequest) (Session, error) {
	sess, err := eng.Open(ctx, req)
	if err != nil {
		if !IsEngineError(err) {
			err = sessionError("open", req.Label, 0, err)
		}
		return nil, err
	}
	if req.BugReport == "" {
		return sess, nil
	}

	rec, err := openTranscript(req)
	if err != nil {
		return nil, errors.Join(err, sess.Close())
	}
	return &recordingSession{inner: sess, rec: rec}, nil
}

// TranscriptEntry is one JSON line of a bug report.
type TranscriptEntry struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Method  string          `json:"method,omitempty"`
	Label   string          `json:"label,omitempty"`
	Program string          `json:"program,omitempty"`
	Start   string          `json:"start,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const (
	EntryHeader   = "header"
	EntryRequest  = "request"
	EntryResponse = "response"
	EntryError    = "error"
	EntryClose    = "close"
)

type transcript struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	now func() time.Time
}

func openTranscript(req OpenRequest) (*transcript, error) {
	f, err := os.OpenFile(req.BugReport, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open bug report %s: %w", req.BugReport, err)
	}
	t := &transcript{f: f, enc: json.NewEncoder(f), now: time.Now}
	if err := t.write(TranscriptEntry{
		Type:    EntryHeader,
		Label:   req.Label,
		Program: req.Program,
		Start:   req.Start,
	}); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func (t *transcript) write(e TranscriptEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.Time = t.now().UTC()
	if err := t.enc.Encode(e); err != nil {
		return fmt.Errorf("write bug report: %w", err)
	}
	return nil
}

func (t *transcript) exchange(method string, req any, resp any, callErr error) error {
	if err := t.write(TranscriptEntry{Type: EntryRequest, Method: method, Payload: rawJSON(req)}); err != nil {
		return err
	}
	if callErr != nil {
		return t.write(TranscriptEntry{Type: EntryError, Method: method, Error: callErr.Error()})
	}
	return t.write(TranscriptEntry{Type: EntryResponse, Method: method, Payload: rawJSON(resp)})
}

func (t *transcript) close(closeErr error) error {
	e := TranscriptEntry{Type: EntryClose}
	if closeErr != nil {
		e.Error = closeErr.Error()
	}
	werr := t.write(e)
	if err := t.f.Sync(); err != nil && werr == nil {
		werr = err
	}
	return errors.Join(werr, t.f.Close())
}

func rawJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(err.Error())
	}
	return data
}

// recordingSession appends every exchange with the inner session to a
// transcript. Transcript write failures surface as errors of the call
// that produced them.
type recordingSession struct {
	inner Session
	rec   *transcript
}

func (s *recordingSession) Step(ctx context.Context, req StepRequest) (StepResult, error) {
	res, err := s.inner.Step(ctx, req)
	if werr := s.rec.exchange("step", req, res, err); werr != nil {
		return res, errors.Join(err, werr)
	}
	return res, err
}

func (s *recordingSession) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	res, err := s.inner.Run(ctx, req)
	if werr := s.rec.exchange("run", req, res, err); werr != nil {
		return res, errors.Join(err, werr)
	}
	return res, err
}

func (s *recordingSession) Close() error {
	err := s.inner.Close()
	return errors.Join(err, s.rec.close(err))
}
