package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads settings whenever the config file changes and calls fn with
// the fresh copy. Editors replace files with rename+create, so the parent
// directory is watched rather than the file itself. Blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, fn func(*Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	// Coalesce event bursts from atomic saves
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(200*time.Millisecond, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			cfg, err := LoadFrom(path)
			if err != nil {
				continue
			}
			fn(cfg)

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
