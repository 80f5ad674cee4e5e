// Package watcher reports new files in the browsable folders.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ChangeFunc is called once per settled file, with the folder name it lives in
type ChangeFunc func(folder, path string)

// Watcher watches a set of named directories for created or rewritten files
type Watcher struct {
	folders  map[string]string
	onChange ChangeFunc
	debounce time.Duration
	log      logrus.FieldLogger
}

// New creates a watcher over folders (name -> directory)
func New(folders map[string]string, onChange ChangeFunc, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		folders:  folders,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		log:      log,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is cancelled. Missing directories are created
// so that files dropped later are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dirs := make(map[string]string, len(w.folders))
	for name, dir := range w.folders {
		abs, err := filepath.Abs(dir)
		if err != nil {
			w.log.WithError(err).WithField("dir", dir).Warn("Watcher: bad directory")
			continue
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			w.log.WithError(err).WithField("dir", abs).Warn("Watcher: cannot create directory")
			continue
		}
		if err := fsw.Add(abs); err != nil {
			w.log.WithError(err).WithField("dir", abs).Warn("Watcher: cannot watch directory")
			continue
		}
		dirs[abs] = name
		w.log.WithField("dir", abs).Debug("Watcher: watching")
	}

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			folder, ok := dirs[filepath.Dir(path)]
			if !ok || strings.HasPrefix(filepath.Base(path), ".") {
				continue
			}

			mu.Lock()
			if t, exists := timers[path]; exists {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				delete(timers, path)
				mu.Unlock()
				if ctx.Err() != nil {
					return
				}
				if info, err := os.Stat(path); err != nil || info.IsDir() {
					return
				}
				w.log.WithFields(logrus.Fields{"folder": folder, "path": path}).Debug("Watcher: file settled")
				w.onChange(folder, path)
			})
			mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher: error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
