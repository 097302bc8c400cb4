package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-index/internal/logging"
	"media-index/internal/mediatypes"
	"media-index/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// Watcher warms the index as files appear: created media files are enqueued
// for background indexing, created directories join the watch set. Nothing
// is ever deleted from the watcher's side; removal stays with explicit
// sweeps.
type Watcher struct {
	mediaDir string
	index    *Index
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
}

// NewWatcher creates a watcher rooted at mediaDir, feeding the given index.
func NewWatcher(mediaDir string, ix *Index) *Watcher {
	return &Watcher{
		mediaDir: mediaDir,
		index:    ix,
		stopChan: make(chan struct{}),
	}
}

// Start registers the directory tree with fsnotify and begins processing
// events in the background. Returns the number of directories watched.
func (w *Watcher) Start() (int, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return 0, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher

	count := w.addDirectories()
	metrics.WatchedDirectories.Set(float64(count))
	logging.Debug("Watching %d directories under %s", count, w.mediaDir)

	go w.processEvents()
	return count, nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.stopChan)
	if w.watcher != nil {
		if err := w.watcher.Close(); err != nil {
			logging.Error("Failed to close file watcher: %v", err)
		}
	}
	metrics.WatchedDirectories.Set(0)
}

// addDirectories walks the media tree and watches every non-hidden
// directory.
func (w *Watcher) addDirectories() int {
	count := 0
	err := filepath.Walk(w.mediaDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.mediaDir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := w.watcher.Add(path); addErr != nil {
			logging.Warn("Failed to watch %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Error("Failed to walk media directory for watcher: %v", err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if event.Op&fsnotify.Create == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	if info.IsDir() {
		if addErr := w.watcher.Add(event.Name); addErr != nil {
			logging.Warn("Failed to watch new directory %s: %v", event.Name, addErr)
			metrics.WatcherErrors.Inc()
		} else {
			logging.Debug("Watching new directory: %s", event.Name)
			metrics.WatchedDirectories.Inc()
		}
		return
	}

	if mediatypes.IsMediaFile(mediatypes.Ext(event.Name)) {
		w.index.Enqueue(event.Name)
	}
}

func eventType(op fsnotify.Op) string {
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
