package goknow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 500 * time.Millisecond

// Reloader accepts a freshly loaded configuration.
type Reloader interface {
	Reload(cfg Config) error
}

// WatchConfig reloads path into r whenever the file changes, until ctx is
// done. The directory is watched so atomic saves (write then rename) are
// seen. Invalid files are logged and the running configuration is kept.
func WatchConfig(ctx context.Context, path string, r Reloader, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching config directory: %w", err)
	}
	logger.Info("watching configuration", zap.String("path", abs))

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))

		case <-timer.C:
			cfg, err := LoadConfig(abs)
			if err != nil {
				logger.Error("reloading configuration, keeping current", zap.Error(err))
				continue
			}
			if err := r.Reload(cfg); err != nil {
				logger.Error("applying configuration", zap.Error(err))
				continue
			}
			logger.Info("configuration file applied", zap.String("path", abs))
		}
	}
}
