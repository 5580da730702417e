// Package watch notices writes other processes make to the SQLite database
// and asks the application to resynchronize its record stores.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Syncer reloads state after an external change.
type Syncer interface {
	SyncNow(ctx context.Context, reason string) error
}

// Watcher debounces filesystem events on a database file and its WAL.
type Watcher struct {
	fsw      *fsnotify.Watcher
	names    map[string]bool
	debounce time.Duration
	syncer   Syncer
	logger   *slog.Logger
}

// New starts watching the directory holding dbPath. Events are only acted on
// once Run is called. The directory is watched rather than the file because
// SQLite creates and removes the -wal file as connections come and go.
func New(dbPath string, debounce time.Duration, syncer Syncer, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	base := filepath.Base(abs)
	return &Watcher{
		fsw: fsw,
		names: map[string]bool{
			base:          true,
			base + "-wal": true,
		},
		debounce: debounce,
		syncer:   syncer,
		logger:   logger.With("component", "watch", "db", abs),
	}, nil
}

// Run dispatches debounced syncs until ctx is canceled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("database watcher stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if err := w.syncer.SyncNow(ctx, "database changed"); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("sync after database change failed", "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	return w.names[filepath.Base(event.Name)]
}
