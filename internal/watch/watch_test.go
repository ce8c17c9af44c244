package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, run func() error) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, "graph.svg")
	require.NoError(t, os.WriteFile(target, []byte("<svg/>\n"), 0644))

	w := New(target, slog.New(slog.NewTextHandler(io.Discard, nil)), run)
	w.debounce = 20 * time.Millisecond
	return w, target
}

func TestWatchRunsOnWrite(t *testing.T) {
	calls := make(chan struct{}, 10)
	w, target := newTestWatcher(t, func() error {
		calls <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("<svg>changed</svg>\n"), 0644))

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("run was not called after the target changed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchStopsOnRunError(t *testing.T) {
	boom := errors.New("boom")
	w, target := newTestWatcher(t, func() error { return boom })

	done := make(chan error, 1)
	go func() { done <- w.Watch(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(target, []byte("x\n"), 0644))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return the run error")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "gone", "graph.svg"), slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil })
	assert.Error(t, w.Watch(context.Background()))
}

func TestRelevant(t *testing.T) {
	w, target := newTestWatcher(t, nil)
	other := filepath.Join(filepath.Dir(target), "graph-remapped.svg")

	assert.True(t, w.relevant(fsnotify.Event{Name: target, Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: target, Op: fsnotify.Create}))
	assert.False(t, w.relevant(fsnotify.Event{Name: target, Op: fsnotify.Chmod}))
	assert.False(t, w.relevant(fsnotify.Event{Name: target, Op: fsnotify.Remove}))
	assert.False(t, w.relevant(fsnotify.Event{Name: other, Op: fsnotify.Write}))
}
