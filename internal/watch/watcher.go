// Package watch reloads the analytics thresholds file when it changes.
package watch

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"civicmon/internal/analytics"
	"civicmon/internal/config"
)

// debounce coalesces the burst of events an editor save produces.
const debounce = 250 * time.Millisecond

// Watcher monitors the thresholds file and hands every valid new version to
// a callback. An invalid edit is logged and the running configuration is
// kept.
type Watcher struct {
	path     string
	base     analytics.Config
	onReload func(analytics.Config)
}

// New creates a watcher for path. Files are merged on top of base, like at
// startup.
func New(path string, base analytics.Config, onReload func(analytics.Config)) *Watcher {
	return &Watcher{path: filepath.Clean(path), base: base, onReload: onReload}
}

// Start begins watching in a background goroutine that stops with ctx.
//
// The parent directory is watched rather than the file itself: editors
// and config management replace files by rename, which drops a watch on
// the old inode.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	log.Printf("👀 Watching %s for threshold changes", w.path)

	go func() {
		defer watcher.Close()

		timer := time.NewTimer(debounce)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != w.path {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					timer.Reset(debounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("  ⚠️  Threshold watcher error: %v", err)
			case <-timer.C:
				w.reload()
			}
		}
	}()
	return nil
}

func (w *Watcher) reload() {
	cfg, err := config.LoadThresholds(w.path, w.base)
	if err != nil {
		log.Printf("  ⚠️  Ignoring threshold change: %v", err)
		return
	}
	log.Printf("🔄 Thresholds reloaded from %s", w.path)
	w.onReload(cfg)
}
