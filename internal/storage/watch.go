package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watch invalidates the store whenever one of the collection files changes on
// disk. Directories are watched rather than files so that replaced files keep
// being tracked.
//
// It returns once the watcher is set up; watching stops when ctx is done.
// onChange, if not nil, is called after each invalidation. Events caused by the
// store's own saves are ignored: the repositories already reload after saving.
func (s *Store) Watch(ctx context.Context, onChange func(path string)) error {
	files := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range s.paths.All() {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Clean(event.Name)
				if event.Op&watchedOps == 0 || !files[name] || s.ownWrite(name) {
					continue
				}
				s.Invalidate()
				slog.InfoContext(ctx, "Data file changed, invalidating", "path", event.Name, "op", event.Op.String())
				if onChange != nil {
					onChange(event.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching data files", "err", err)
			}
		}
	}()
	return nil
}

type fileStamp struct {
	modTime int64
	size    int64
}

func statStamp(path string) (fileStamp, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{modTime: fi.ModTime().UnixNano(), size: fi.Size()}, true
}

// markWritten records the stamp of path after a save by the store.
func (s *Store) markWritten(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if st, ok := statStamp(abs); ok {
		s.written.Store(abs, st)
	}
}

// ownWrite reports whether the file at abs is still exactly as the store last
// saved it.
func (s *Store) ownWrite(abs string) bool {
	v, ok := s.written.Load(abs)
	if !ok {
		return false
	}
	st, ok := statStamp(abs)
	return ok && st == v.(fileStamp)
}
