// Package watcher reports edits to configuration files.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// ChangeCallback is called with the watched path once a burst of writes
// has settled.
type ChangeCallback func(path string)

// Watcher monitors individual files for changes.
type Watcher struct {
	mu       sync.Mutex
	watchers map[string]*fileWatcher // absolute path → watcher
	debounce time.Duration
	callback ChangeCallback
	logger   zerolog.Logger
}

type fileWatcher struct {
	path      string
	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
	done      chan struct{}
}

// New creates a watcher. A non-positive debounce selects the default.
func New(debounce time.Duration, callback ChangeCallback, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		watchers: make(map[string]*fileWatcher),
		debounce: debounce,
		callback: callback,
		logger:   logger,
	}
}

// Watch starts watching path. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watchers[abs]; ok {
		return nil
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsW.Add(filepath.Dir(abs)); err != nil {
		fsW.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	fw := &fileWatcher{
		path:      abs,
		fsWatcher: fsW,
		cancel:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	w.watchers[abs] = fw

	go w.watchLoop(fw)

	w.logger.Info().Str("path", abs).Msg("watching config file")
	return nil
}

// Unwatch stops watching path.
func (w *Watcher) Unwatch(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	fw, ok := w.watchers[abs]
	if ok {
		delete(w.watchers, abs)
	}
	w.mu.Unlock()

	if ok {
		close(fw.cancel)
		fw.fsWatcher.Close()
		<-fw.done
	}
}

// watchLoop processes fsnotify events with debouncing.
func (w *Watcher) watchLoop(fw *fileWatcher) {
	defer close(fw.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-fw.cancel:
			return

		case event, ok := <-fw.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// Debounce: reset timer on each event.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case <-fw.cancel:
					return
				default:
				}
				w.logger.Info().Str("path", fw.path).Msg("config file changed")
				if w.callback != nil {
					w.callback(fw.path)
				}
			})

		case err, ok := <-fw.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Str("path", fw.path).Msg("watcher error")
		}
	}
}

// Shutdown stops all watchers.
func (w *Watcher) Shutdown() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.watchers))
	for p := range w.watchers {
		paths = append(paths, p)
	}
	w.mu.Unlock()

	for _, p := range paths {
		w.Unwatch(p)
	}
}
