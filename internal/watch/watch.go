// Package watch re-runs the transform whenever the target file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of writes a profiler emits while
// flushing a graph into a single re-run.
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls run after the target has been written or replaced.
type Watcher struct {
	target   string
	logger   *slog.Logger
	run      func() error
	debounce time.Duration
}

// New creates a Watcher for target.
func New(target string, logger *slog.Logger, run func() error) *Watcher {
	return &Watcher{
		target:   filepath.Clean(target),
		logger:   logger,
		run:      run,
		debounce: DefaultDebounce,
	}
}

// Watch blocks until ctx is done or run fails. The target's directory is
// watched rather than the file so that atomic replacement by rename is seen.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.target)); err != nil {
		return err
	}
	w.logger.Info("watching for changes", slog.String("target", w.target))

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
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("target changed", slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.run(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.target {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}
