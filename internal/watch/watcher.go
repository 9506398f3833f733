// Package watch re-runs a batch when definition files change on disk.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"grpcheck/pkg/logging"
)

// Run watches the directories containing the given files and invokes fn
// after changes, coalescing bursts of events within the debounce window.
// It blocks until the context is canceled.
func Run(ctx context.Context, files []string, ext string, debounce time.Duration, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := make(map[string]bool)
	for _, f := range files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
		logging.Debug("Watch", "watching %s", dir)
	}

	// The timer is armed on the first interesting event and reset by each
	// subsequent one, so editor save bursts trigger a single re-run.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ext) {
				continue
			}
			logging.Debug("Watch", "%s changed", event.Name)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Watch", "watcher error: %v", err)

		case <-timer.C:
			fn()
		}
	}
}
