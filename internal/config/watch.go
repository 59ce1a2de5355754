package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"notibot/pkg/logx"
)

const debounceWindow = 300 * time.Millisecond

// Watch reloads the config file on change and calls onChange with the new
// config. Reload errors are logged and the previous config stays in effect.
// The watcher runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself: many editors
// and config-management tools replace the file (rename/create) instead of
// writing in place.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return err
	}
	base := filepath.Base(path)

	go func() {
		defer w.Close()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		fire := make(chan struct{}, 1)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// Debounce: editors often emit several events per save.
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceWindow, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			case <-fire:
				cfg, err := Load(path)
				if err != nil {
					log.Warn("config reload failed, keeping previous config", logx.Err(err))
					continue
				}
				log.Info("config reloaded", logx.String("path", path))
				onChange(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", logx.Err(err))
			}
		}
	}()
	return nil
}
