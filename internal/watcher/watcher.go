// Package watcher watches the data directory for mcp_settings.json changes
// (C5 in the design). It never reloads instances automatically — the
// original add/remove/enable/disable flows already keep the registry and
// the on-disk files in sync, so a detected external edit is only logged as
// a notice that the operator should re-run the relevant management
// operation for it to take effect.
package watcher

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce matches the original watcher's debounce_delay default.
const DefaultDebounce = 1 * time.Second

// Watcher wraps an fsnotify watcher with per-path debouncing so a single
// save (which often fires several OS-level events) produces one log line.
type Watcher struct {
	fsw      *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration

	mu           sync.Mutex
	lastNotified map[string]time.Time
}

// New creates a Watcher that watches nothing yet: dataDir itself is not
// added, and each provider subdirectory (where mcp_settings.json lives) is
// watched only once passed to AddProviderDir.
func New(dataDir string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, log: log, debounce: debounce, lastNotified: make(map[string]time.Time)}
	return w, nil
}

// AddProviderDir starts watching a single provider directory. Call this for
// every existing provider at startup, and again whenever Add creates one.
func (w *Watcher) AddProviderDir(dir string) error {
	return w.fsw.Add(dir)
}

// Run consumes fsnotify events until stop is closed or the fsnotify channels
// close, logging a
// debounced notice for every settings-file change.
func (w *Watcher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, "mcp_settings.json") {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	now := time.Now()
	w.mu.Lock()
	last, seen := w.lastNotified[ev.Name]
	if seen && now.Sub(last) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.lastNotified[ev.Name] = now
	w.mu.Unlock()

	w.log.Info("detected external config change; re-run add/enable to apply it",
		zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
