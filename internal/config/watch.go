package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path whenever it changes and passes every
// valid result to onChange. Invalid edits are logged and skipped. Watch
// blocks until ctx is done.
//
// The directory is watched rather than the file so that editors replacing
// the file on save are picked up.
func Watch(ctx context.Context, path string, logger *log.Logger, onChange func(Config)) error {
	if logger == nil {
		logger = log.Default()
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
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				logger.Printf("config reload: %v", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				logger.Printf("config reload: invalid config: %v", err)
				continue
			}
			logger.Printf("config reloaded from %s", abs)
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Printf("config watcher: %v", err)
		}
	}
}
