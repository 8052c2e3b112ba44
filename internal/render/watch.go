package render

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watcher waits for writes to settle.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reports changes to a single record file.
//
// The directory is watched rather than the file because records are
// replaced by rename, which drops watches on the old inode.
//
// # Thread Safety
//
// Run should only be called once. Close may be called from any goroutine.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher creates a watcher for path. A zero debounce means
// DefaultDebounce; a nil logger discards output.
func NewWatcher(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{path: filepath.Clean(path), debounce: debounce, watcher: fw, logger: logger}, nil
}

// Run calls onChange once per burst of changes to the file. It blocks until
// ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.logger.Debug("record changed", "path", w.path)
			onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("record watcher error", "path", w.path, "error", err)
		}
	}
}

// Close stops the watcher and makes Run return.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
