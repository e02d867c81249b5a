// Package watcher rebuilds the documentation when its metadata files change.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reports changes to a fixed set of files. Their directories are
// watched rather than the files themselves so that editors which save by
// renaming a temporary file are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	log      logrus.FieldLogger
}

// New watches the given files. Empty paths are ignored.
func New(paths []string, debounce time.Duration, log logrus.FieldLogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fsw,
		files:    make(map[string]bool),
		debounce: debounce,
		log:      log,
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
		dirs[dir] = true
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// IsRelevant reports whether event changes one of the watched files.
func (w *Watcher) IsRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.files[filepath.Clean(event.Name)]
}

// Run calls rebuild once changes have settled for the debounce interval,
// until ctx is cancelled. A failed rebuild is logged and watching goes on.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context) error) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.IsRelevant(event) {
				continue
			}
			w.log.WithField("file", event.Name).Debug("Metadata changed")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.log.Info("Rebuilding documentation")
			if err := rebuild(ctx); err != nil {
				w.log.WithError(err).Error("Rebuild failed")
				continue
			}
			w.log.Info("Done")

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Error("Watcher error")
		}
	}
}
