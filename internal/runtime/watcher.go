package runtime

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/askmydocs/internal/adapters/driven/bundle"
)

// ReloadFunc replaces the live index with the persisted bundle.
type ReloadFunc func(ctx context.Context) error

// IndexWatcher polls a bundle's manifest and reloads the live index when it
// changes. It lets an api process pick up bundles written by a separate
// worker process.
type IndexWatcher struct {
	path     string
	interval time.Duration
	reload   ReloadFunc
	logger   *slog.Logger

	mu   sync.Mutex
	last string

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewIndexWatcher creates a watcher for the bundle at path.
func NewIndexWatcher(path string, interval time.Duration, reload ReloadFunc, logger *slog.Logger) *IndexWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexWatcher{
		path:     path,
		interval: interval,
		reload:   reload,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins polling in a goroutine.
func (w *IndexWatcher) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop stops polling and waits for the loop to exit.
func (w *IndexWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *IndexWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.Check(ctx); err != nil {
				w.logger.Warn("index reload failed", "path", w.path, "error", err)
			}
		}
	}
}

// Check reloads the index if the manifest changed since the last check and
// reports whether a reload happened. A missing bundle is not an error.
func (w *IndexWatcher) Check(ctx context.Context) (bool, error) {
	sum, err := bundle.ManifestChecksum(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if sum == w.last {
		return false, nil
	}

	if err := w.reload(ctx); err != nil {
		return false, err
	}
	w.last = sum
	w.logger.Info("index reloaded", "path", w.path)
	return true, nil
}

// MarkCurrent records the bundle on disk as already loaded.
func (w *IndexWatcher) MarkCurrent() {
	sum, err := bundle.ManifestChecksum(w.path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.last = sum
	w.mu.Unlock()
}
