package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LoadFile renders the scene in path
func (s *Server) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read scene: %w", err)
	}
	return s.Render(string(data), s.Target())
}

// Watch re-renders the scene in path whenever it is saved, waiting for the
// writes to settle for debounce first. It returns once the watcher is set up
// and stops when ctx is cancelled.
func (s *Server) Watch(ctx context.Context, path string, debounce time.Duration) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often replace the file on save, so watch its directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					timer.Reset(debounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("file watcher error", "error", err)
			case <-timer.C:
				s.logger.Info("scene file changed, re-rendering", "path", path)
				if err := s.LoadFile(path); err != nil {
					s.logger.Debug("reload failed", "error", err)
				}
			}
		}
	}()
	return nil
}
