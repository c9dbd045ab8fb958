// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ManuGH/tempy/internal/log"
)

// Watch invalidates videos that are created, written, removed or renamed
// below the video directory. Events for one file are debounced. Watch
// blocks until ctx ends.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("library: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dirs := 0
	err = c.walk(ctx, func(string, string, fs.FileInfo) error { return nil }, func(dir string) {
		if err := watcher.Add(dir); err != nil {
			logScanError("watch", err, dir)
			return
		}
		dirs++
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("library: watch %s: %w", c.root, err)
	}

	c.logger.Info().
		Str(log.FieldEvent, "library.watcher.started").
		Int("dirs", dirs).
		Dur("debounce", c.cfg.Debounce).
		Msg("watching video directory for changes")

	pending := make(map[string]struct{})
	debounce := time.NewTimer(c.cfg.Debounce)
	debounce.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str(log.FieldEvent, "library.watcher.stopped").Msg("video directory watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, ".") {
				continue
			}
			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logScanError("watch", err, event.Name)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !c.isVideo(name) {
				continue
			}

			c.logger.Debug().
				Str(log.FieldEvent, "library.file_changed").
				Str("op", event.Op.String()).
				Str("path_hash", hashPath(event.Name)).
				Msg("video changed")
			pending[event.Name] = struct{}{}
			debounce.Reset(c.cfg.Debounce)
			fire = debounce.C

		case <-fire:
			fire = nil
			for p := range pending {
				c.Invalidate(ctx, p)
				delete(pending, p)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn().Err(err).Str(log.FieldEvent, "library.watcher.error").Msg("video directory watcher error")
		}
	}
}
