package store

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/beadboard/beadboard/internal/logging"
)

// Watcher notices the sqlite store file being removed or swapped out from
// under the dashboard. bd migrations and `bd import` rewrite the file in
// place; pollers that see a signal here should treat their cached state as
// void and rebuild from a fresh snapshot.
type Watcher struct {
	changes chan struct{}
	fsw     *fsnotify.Watcher
	log     zerolog.Logger
}

// WatchFile watches the store file at path. Only sqlite stores have a file
// to watch; callers on the mysql driver simply never construct one.
func WatchFile(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	// Watch the directory, not the file: editors and migrations replace the
	// file by rename, which drops a direct file watch.
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("store: watch %s: %w", dir, err)
	}

	w := &Watcher{
		changes: make(chan struct{}, 1),
		fsw:     fsw,
		log:     logging.Component("storewatch"),
	}
	go w.loop(filepath.Base(path))
	return w, nil
}

// Changes delivers one signal per observed replacement. The channel is
// never closed while the watcher is open; signals coalesce when nobody is
// listening.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher. Safe to call once.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) loop(base string) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug().Str("op", ev.Op.String()).Str("file", ev.Name).Msg("store file replaced")
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("store watch error")
		}
	}
}
