package shared

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a config file whenever it is written and hands the result to a callback.
//
// The parent directory is watched rather than the file so editors that save by rename still trigger a reload.
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *log.Logger
	onChange func(*Config)
}

// NewConfigWatcher starts watching path. Call [ConfigWatcher.Run] to process events.
func NewConfigWatcher(path string, logger *log.Logger, onChange func(*Config)) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	return &ConfigWatcher{path: abs, watcher: watcher, logger: logger, onChange: onChange}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed.
func (w *ConfigWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			cfg, err := LoadConfig(w.path)
			if err != nil {
				w.logger.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("config reloaded", "path", w.path)
			w.onChange(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}
