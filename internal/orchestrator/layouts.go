package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tile-orchestrator/internal/tiles"
)

// DefaultReloadDelay is how long the watcher waits for a burst of file
// events to settle before reloading.
const DefaultReloadDelay = 500 * time.Millisecond

// LayoutSource yields the layouts currently in effect.
type LayoutSource interface {
	Current() *tiles.Manager
}

// StaticLayouts is a LayoutSource that never changes.
type StaticLayouts struct {
	Manager *tiles.Manager
}

// Current implements LayoutSource.
func (s StaticLayouts) Current() *tiles.Manager {
	return s.Manager
}

// Watcher keeps a layouts directory loaded and reloads it when files under
// it change. A reload that fails leaves the previous layouts in effect.
type Watcher struct {
	dir   string
	log   *slog.Logger
	delay time.Duration

	mu      sync.RWMutex
	current *tiles.Manager

	timerMu sync.Mutex
	timer   *time.Timer
	// reloaded, if set, is called after every reload attempt.
	reloaded func(error)
}

// NewWatcher loads dir once and returns a Watcher serving it.
func NewWatcher(dir string, log *slog.Logger, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	m, err := tiles.Load(dir)
	if err != nil {
		return nil, err
	}
	return &Watcher{dir: dir, log: log, delay: delay, current: m}, nil
}

// Current implements LayoutSource.
func (w *Watcher) Current() *tiles.Manager {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reload loads the directory again and swaps it in on success.
func (w *Watcher) Reload() error {
	m, err := tiles.Load(w.dir)
	if err != nil {
		w.log.Warn("layout reload failed, keeping previous layouts",
			slog.String("dir", w.dir), slog.String("error", err.Error()))
		return err
	}
	w.mu.Lock()
	w.current = m
	w.mu.Unlock()
	w.log.Info("layouts reloaded", slog.String("dir", w.dir), slog.Int("segments", m.Len()))
	return nil
}

// Run watches the directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw); err != nil {
		return err
	}
	defer w.stopTimer()

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("layout watcher error", slog.String("error", err.Error()))
		case <-ctx.Done():
			return nil
		}
	}
}

// addTree watches the root and each interval directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher) error {
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := fw.Add(filepath.Join(w.dir, e.Name())); err != nil {
			return fmt.Errorf("watch %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	if ev.Op.Has(fsnotify.Create) && filepath.Dir(ev.Name) == filepath.Clean(w.dir) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := fw.Add(ev.Name); err != nil {
				w.log.Warn("watch new layout directory", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
		}
	}
	w.log.Debug("layout change detected", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		err := w.Reload()
		if w.reloaded != nil {
			w.reloaded(err)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
