package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the freshly loaded record whenever the session
// file at path is written, replaced, or removed (nil is passed on removal).
// It blocks until ctx is done.
//
// Saves replace the file by rename, so the parent directory is watched and
// events are filtered by name. The directory is created if it does not
// exist yet, so a watch started before the first login sees that login.
func Watch(ctx context.Context, path string, onChange func(*Record), logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sessionstore: creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("sessionstore: creating %s: %w", dir, err)
	}

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("sessionstore: watching %s: %w", dir, err)
	}

	logger.Debug("watching session file", slog.String("path", path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			rec, err := readFile(path)
			if err != nil {
				// A half-written file shows up as a decode error; the
				// following event carries the complete one.
				logger.Warn("reloading session file failed",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)

				continue
			}

			logger.Info("session file changed", slog.String("event", event.Op.String()))
			onChange(rec)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Error("session watcher error", slog.String("error", err.Error()))
		}
	}
}
