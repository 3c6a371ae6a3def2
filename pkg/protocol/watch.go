package protocol

import (
	"context"
	"path/filepath"

	"github.com/MalekiRe/bevy-editor/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config file at path whenever it is written or replaced
// and hands each valid result to onChange. Invalid reloads are logged and
// dropped. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file itself so editors that
// save by rename keep triggering reloads.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(abs)
			if err != nil {
				logger.Log.Warn("Config: reload rejected", "path", abs, "err", err)
				continue
			}
			logger.Log.Info("Config: reloaded, applies from next cycle", "path", abs)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Warn("Config: watcher error", "err", err)
		}
	}
}

// Personal.AI order the ending
