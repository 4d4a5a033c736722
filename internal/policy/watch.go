package policy

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"go.uber.org/zap"
)

// Watch supplements the mtime-gated polling in Current with an fsnotify
// watch on the policy file's parent directory: a write
// or rename event clears the cooldown immediately instead of waiting up to
// 5 seconds for the next Current call to notice. It runs until stop is
// closed; watcher setup failure is logged and swallowed since the 5-second
// poll still provides correctness on its own.
func (s *Store) Watch(stop <-chan struct{}, log *zap.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if log != nil {
			log.Warn("policy: fsnotify unavailable, relying on mtime poll", zap.Error(err))
		}
		return
	}
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		if log != nil {
			log.Warn("policy: watch directory failed, relying on mtime poll", zap.String("dir", dir), zap.Error(err))
		}
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.ForceReload(); err != nil && log != nil {
					log.Warn("policy: reload after fs event failed", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if log != nil {
					log.Warn("policy: fsnotify error", zap.Error(err))
				}
			}
		}
	}()
}
