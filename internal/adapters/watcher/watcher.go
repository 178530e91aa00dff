// Package watcher adapts fsnotify into the behavioral channel.
//
// fsnotify watches single directories, so a recursive subscription is built
// by walking every monitored root and adding each non-excluded directory.
// Directories created while running are added as they appear.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/ports"
	"github.com/xoelrdgz/ransomradar/pkg/dedup"
)

type Config struct {
	Dirs         []string          // Monitored roots (already expanded)
	Filter       domain.PathFilter // Excluded prefixes
	IncludeChmod bool              // Report attribute changes as modifications
}

type FSWatcher struct {
	config  Config
	sink    ports.EventSink
	tracker *dedup.Tracker

	watcher   *fsnotify.Watcher
	watched   map[string]struct{}
	watchedMu sync.Mutex

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func New(config Config, sink ports.EventSink, tracker *dedup.Tracker) *FSWatcher {
	if tracker == nil {
		tracker = dedup.New(dedup.DefaultCapacity)
	}
	return &FSWatcher{
		config:  config,
		sink:    sink,
		tracker: tracker,
		watched: make(map[string]struct{}),
	}
}

// Start creates missing monitored directories and registers the recursive
// watches. A directory that cannot be created is logged and left unwatched.
func (w *FSWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	w.watchedMu.Lock()
	w.watcher = fsw
	w.watched = make(map[string]struct{})
	w.watchedMu.Unlock()

	for _, dir := range w.config.Dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Warn().Str("dir", dir).Msg("Monitored directory does not exist, creating it")
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Error().Err(err).Str("dir", dir).Msg("Cannot create monitored directory, skipping")
				continue
			}
		}
		n := w.addTree(dir, false)
		log.Info().Str("dir", dir).Int("watches", n).Msg("Started monitoring")
	}

	w.stopChan = make(chan struct{})
	w.running = true

	w.wg.Add(1)
	go w.loop(fsw, w.stopChan)

	return nil
}

// addTree watches root and every directory below it that is not excluded.
// With reportFiles set, regular files already present are forwarded as
// created; they may have been written before the watch on their directory
// was registered.
func (w *FSWatcher) addTree(root string, reportFiles bool) int {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Cannot walk directory for watching")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if w.config.Filter.IsExcluded(path) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if reportFiles && d.Type().IsRegular() {
				w.forward(domain.FileEvent{Kind: domain.FileCreated, Path: path, Timestamp: time.Now()})
			}
			return nil
		}

		w.watchedMu.Lock()
		defer w.watchedMu.Unlock()
		if _, ok := w.watched[path]; ok {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to add watch")
			return nil
		}
		w.watched[path] = struct{}{}
		added++
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("dir", root).Msg("Directory walk aborted")
	}
	return added
}

func (w *FSWatcher) loop(fsw *fsnotify.Watcher, stop <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-stop:
			return
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("File watcher error")
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		}
	}
}

func (w *FSWatcher) handle(ev fsnotify.Event) {
	path := ev.Name
	if w.config.Filter.IsExcluded(path) {
		return
	}

	var kind domain.FileEventKind
	switch {
	case ev.Has(fsnotify.Create):
		if isDir(path) {
			w.addTree(path, true)
			return
		}
		kind = domain.FileCreated
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.forget(path) {
			return
		}
		kind = domain.FileDeleted
	case ev.Has(fsnotify.Write):
		if isDir(path) {
			return
		}
		kind = domain.FileModified
	case ev.Has(fsnotify.Chmod):
		if !w.config.IncludeChmod || isDir(path) {
			return
		}
		kind = domain.FileModified
	default:
		return
	}

	w.forward(domain.FileEvent{Kind: kind, Path: path, Timestamp: time.Now()})
}

// forget drops a watched directory that disappeared and reports whether
// path was one.
func (w *FSWatcher) forget(path string) bool {
	w.watchedMu.Lock()
	defer w.watchedMu.Unlock()

	if _, ok := w.watched[path]; !ok {
		return false
	}
	delete(w.watched, path)
	// Removed directories drop their watch automatically; renamed ones
	// keep it under the old name until removed here.
	_ = w.watcher.Remove(path)
	return true
}

func (w *FSWatcher) forward(fe domain.FileEvent) {
	if !w.tracker.Add(fe.DedupKey()) {
		return
	}
	event := domain.NewEvent(domain.ChannelBehavioral, fe.Message()).WithPath(fe.Path)
	event.AddMetadata("kind", fe.Kind.String())
	w.sink.Emit(event)
}

func isDir(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.IsDir()
}

// Stop releases every OS watch handle and clears the dedup tracker.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopChan)
	err := w.watcher.Close()
	w.mu.Unlock()

	w.wg.Wait()

	w.watchedMu.Lock()
	w.watched = make(map[string]struct{})
	w.watchedMu.Unlock()

	w.tracker.Clear()
	log.Info().Msg("Stopped all monitoring")
	return err
}

func (w *FSWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// WatchCount returns the number of directories currently watched.
func (w *FSWatcher) WatchCount() int {
	w.watchedMu.Lock()
	defer w.watchedMu.Unlock()
	return len(w.watched)
}
