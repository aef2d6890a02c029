package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tile-orchestrator/internal/tiles"
)

func TestWatcher_Reload(t *testing.T) {
	root := t.TempDir()
	writeLayoutDir(t, root, "0-99", mustLayout(t, []int{720}, []int{1280}))

	w, err := NewWatcher(root, testLogger(), 0)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if w.Current().Len() != 1 {
		t.Fatalf("Len = %d, want 1", w.Current().Len())
	}

	writeLayoutDir(t, root, "100-199", mustLayout(t, []int{320, 400}, []int{640, 640}))
	if err := w.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if w.Current().Len() != 2 {
		t.Errorf("Len after reload = %d, want 2", w.Current().Len())
	}

	// An overlapping directory makes the load fail; the previous layouts stay.
	writeLayoutDir(t, root, "150-249", mustLayout(t, []int{720}, []int{1280}))
	if err := w.Reload(); !errors.Is(err, tiles.ErrInvalidDirectoryLayout) {
		t.Fatalf("expected ErrInvalidDirectoryLayout, got %v", err)
	}
	if w.Current().Len() != 2 {
		t.Errorf("failed reload replaced layouts: Len = %d", w.Current().Len())
	}
}

func TestNewWatcher_bad_directory(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), testLogger(), 0); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestWatcher_Run_picks_up_new_segment(t *testing.T) {
	root := t.TempDir()
	writeLayoutDir(t, root, "0-99", mustLayout(t, []int{720}, []int{1280}))

	w, err := NewWatcher(root, testLogger(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	reloaded := make(chan error, 8)
	w.reloaded = func(err error) {
		select {
		case reloaded <- err:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher a moment to register the tree, then move a complete
	// segment directory in so it appears in one event.
	time.Sleep(100 * time.Millisecond)
	staging := t.TempDir()
	writeLayoutDir(t, staging, "100-199", mustLayout(t, []int{320, 400}, []int{640, 640}))
	if err := os.Rename(filepath.Join(staging, "100-199"), filepath.Join(root, "100-199")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for w.Current().Len() != 2 {
		select {
		case <-reloaded:
		case <-deadline:
			t.Fatalf("watcher did not reload, Len = %d", w.Current().Len())
		}
	}
	if _, err := w.Current().LayoutForFrame(150); err != nil {
		t.Errorf("LayoutForFrame(150) after reload: %v", err)
	}
}
