package store

import (
	"context"
	"fmt"
	"time"
)

// Session is one ledger row: a single advance of a single proof record.
type Session struct {
	ID         string `db:"id" json:"id"`
	Label      string `db:"label" json:"label"`
	Origin     string `db:"origin" json:"origin"`
	Verdict    string `db:"verdict" json:"verdict"`
	Passed     bool   `db:"passed" json:"passed"`
	Iterations int    `db:"iterations" json:"iterations"` // cumulative, after the session
	Advanced   int    `db:"advanced" json:"advanced"`     // performed in this session
	Nodes      int    `db:"nodes" json:"nodes"`
	Digest     string `db:"digest" json:"digest"`
	Error      string `db:"error" json:"error,omitempty"`
	StartedAt  int64  `db:"started_at" json:"started_at"`
	FinishedAt int64  `db:"finished_at" json:"finished_at"`
}

// Started returns StartedAt as a time.
func (s Session) Started() time.Time {
	return time.UnixMilli(s.StartedAt)
}

// Duration returns how long the session ran.
func (s Session) Duration() time.Duration {
	return time.Duration(s.FinishedAt-s.StartedAt) * time.Millisecond
}

// RecordSession appends a session row. Duplicate ids are ignored so a
// retried write is harmless.
func (l *Ledger) RecordSession(ctx context.Context, s Session) error {
	_, err := l.db.NamedExecContext(ctx, `
		INSERT INTO sessions
		(id, label, origin, verdict, passed, iterations, advanced, nodes, digest, error, started_at, finished_at)
		VALUES (:id, :label, :origin, :verdict, :passed, :iterations, :advanced, :nodes, :digest, :error, :started_at, :finished_at)
		ON CONFLICT(id) DO NOTHING
	`, s)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// ListSessions returns the most recent sessions first. An empty label
// lists every label; limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if there are no sessions.
func (l *Ledger) ListSessions(ctx context.Context, label string, limit int) ([]Session, error) {
	query := `SELECT id, label, origin, verdict, passed, iterations, advanced, nodes, digest, error, started_at, finished_at
		FROM sessions`
	var args []any
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY started_at DESC, id COLLATE BINARY DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	sessions := []Session{}
	if err := l.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}
