package main

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"taskmap/internal/logging"
)

// fileWatcher signals when one file changes. It watches the parent
// directory so editors that save by rename are still seen.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	changes  chan struct{}
	done     chan struct{}
	stopped  chan struct{}
}

func newFileWatcher(path string, debounce time.Duration) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fileWatcher{
		watcher:  w,
		path:     path,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

// Changes receives one signal per burst of writes. It is closed when the
// watcher stops.
func (w *fileWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher and waits for its goroutine.
func (w *fileWatcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	<-w.stopped
	return err
}

func (w *fileWatcher) loop() {
	defer close(w.stopped)
	defer close(w.changes)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce: restart the timer on each write.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default: // already signaled
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warn("watch %s: %v", w.path, err)
		}
	}
}
