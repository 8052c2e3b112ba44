package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/kompass/internal/claims"
	"github.com/roach88/kompass/internal/proof"
)

// RecordFile is the name of the record file inside each label directory.
const RecordFile = "proof.json"

// Store reads and writes proof records under a proof directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created lazily on
// the first Persist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the proof directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record file for a label.
func (s *Store) Path(label string) (string, error) {
	if label == "" || label == "." || label == ".." || strings.ContainsAny(label, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	return filepath.Join(s.dir, label, RecordFile), nil
}

// Exists reports whether a record is persisted for label.
func (s *Store) Exists(label string) bool {
	path, err := s.Path(label)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load reads the record for label. It never creates one.
func (s *Store) Load(label string) (*proof.Record, error) {
	path, err := s.Path(label)
	if err != nil {
		return nil, &IOError{Op: "load", Label: label, Err: err}
	}

	var r proof.Record
	if err := readJSONStrict(path, &r); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &IOError{Op: "load", Label: label, Path: path, Err: ErrRecordNotFound}
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, &IOError{Op: "load", Label: label, Path: path, Err: err}
		}
		return nil, &IOError{Op: "load", Label: label, Path: path, Err: fmt.Errorf("%w: %v", ErrCorruptRecord, err)}
	}
	if r.ID != label {
		return nil, &IOError{
			Op:    "load",
			Label: label,
			Path:  path,
			Err:   fmt.Errorf("%w: record id %q does not match label", ErrCorruptRecord, r.ID),
		}
	}

	r.Normalize()
	if err := r.Graph.Validate(); err != nil {
		return nil, &IOError{Op: "load", Label: label, Path: path, Err: fmt.Errorf("%w: %v", ErrCorruptRecord, err)}
	}
	return &r, nil
}

// LoadOrCreate returns the persisted record for label, or a fresh one built
// from c when none exists or forceNew is set. With forceNew the existing
// file is not read at all, so a corrupt record can be replaced.
func (s *Store) LoadOrCreate(label string, c claims.Claim, forceNew bool) (*proof.Record, proof.Origin, error) {
	var existing *proof.Record
	if !forceNew {
		r, err := s.Load(label)
		switch {
		case err == nil:
			existing = r
		case IsNotFound(err):
		default:
			return nil, "", err
		}
	}

	if c.Label == "" {
		c.Label = label
	}
	r, origin := proof.Choose(existing, c, forceNew)
	return r, origin, nil
}

// Persist atomically overwrites the record file for r.ID.
func (s *Store) Persist(r *proof.Record) error {
	path, err := s.Path(r.ID)
	if err != nil {
		return &IOError{Op: "persist", Label: r.ID, Err: err}
	}

	r.Normalize()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return &IOError{Op: "persist", Label: r.ID, Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := writeFileAtomicDurable(path, data, 0o644); err != nil {
		return &IOError{Op: "persist", Label: r.ID, Path: path, Err: err}
	}
	return nil
}

// Prune removes nodeID and the nodes reachable only through it from r and
// returns the removed count. The change is in memory only; call Persist to
// make it durable.
func (s *Store) Prune(r *proof.Record, nodeID int) (int, error) {
	n, err := r.Graph.Prune(nodeID)
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", r.ID, err)
	}
	r.Refresh()
	return n, nil
}

// List returns the labels with a persisted record, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, &IOError{Op: "list", Path: s.dir, Err: err}
	}

	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && s.Exists(e.Name()) {
			labels = append(labels, e.Name())
		}
	}
	sort.Strings(labels)
	return labels, nil
}
