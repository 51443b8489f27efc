package secrets

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/secretsh/internal/logging"
)

// Watch reports changes to secret source files until ctx is done.
//
// The store is never reloaded: values are fixed for the life of a session.
// onChange receives the source path so the caller can tell the operator to
// restart. The parent directories are watched because editors commonly
// replace files by rename.
func Watch(ctx context.Context, logger *logging.Logger, paths []string, onChange func(path string)) error {
	if logger == nil {
		logger = logging.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	targets := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		resolved, err := ExpandPath(p)
		if err != nil {
			watcher.Close()
			return err
		}
		abs, err := filepath.Abs(resolved)
		if err != nil {
			watcher.Close()
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		targets[abs] = p
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			logger.Debug(ctx, "cannot watch secret source directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		dirs[dir] = true
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				source, tracked := targets[filepath.Clean(event.Name)]
				if !tracked {
					continue
				}
				logger.Warn(ctx, "secret source changed; restart to apply",
					zap.String("source", source),
					zap.String("op", event.Op.String()),
				)
				if onChange != nil {
					onChange(source)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn(ctx, "secret source watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
