package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the playlist at path whenever the file is written or
// replaced and hands every valid result to onLoad. An invalid file is
// logged and ignored, so the playlist in use stays untouched. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, path string, onLoad func(*Playlist)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating playlist watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	// Editors replace files on save, so watch the directory
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	slog.Info("Playlist: watching for changes", "file", abs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			p, err := LoadFile(abs)
			if err != nil {
				slog.Warn("Playlist: reload rejected, keeping current playlist", "file", abs, "error", err)
				continue
			}
			slog.Info("Playlist: reloaded", "file", abs, "steps", p.Len())
			onLoad(p)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Playlist: watcher error", "error", err)
		}
	}
}
