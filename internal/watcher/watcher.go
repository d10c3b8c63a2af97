// Package watcher turns filesystem events under the library root into
// debounced sync requests.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// DefaultDebounce is the quiet period after the last event before a sync is
// requested.
const DefaultDebounce = 2 * time.Second

// Watcher watches every non-hidden directory under a root.
type Watcher struct {
	root     string
	debounce time.Duration
	trigger  func()

	fsw *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher that calls trigger once events have been quiet for
// debounce.
func New(root string, debounce time.Duration, trigger func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		trigger:  trigger,
		done:     make(chan struct{}),
	}
}

// Start registers the directory tree and processes events until ctx is done
// or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.fsw = fsw

	count := w.addTree(w.root)
	logging.Info("Watching %d directories under %s", count, w.root)

	go w.loop(ctx)
	return nil
}

// Stop ends event processing. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		if w.fsw != nil {
			if err := w.fsw.Close(); err != nil {
				logging.Error("failed to close file watcher: %v", err)
			}
		}
	})
}

func (w *Watcher) addTree(root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Error("failed to walk library directory for watcher: %v", err)
	}
	return count
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || isHidden(rel) {
		return
	}

	op := opName(event.Op)
	metrics.WatcherEventsTotal.WithLabelValues(op).Inc()
	if op == "chmod" {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			n := w.addTree(event.Name)
			logging.Debug("Added %d new directories to watcher under %s", n, event.Name)
		}
	}
	w.schedule()
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		logging.Debug("Library changed, requesting sync")
		w.trigger()
	})
}

func isHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func opName(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
