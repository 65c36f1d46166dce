package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lotas/tabgrouper/internal/applog"
)

// watchDebounce coalesces the burst of events one SQLite commit produces
// (main file, -wal and -shm).
const watchDebounce = 150 * time.Millisecond

// Watch calls onChange whenever the database at dbPath is written, by this
// or any other process. It blocks until ctx is cancelled.
func Watch(ctx context.Context, dbPath string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: SQLite replaces and truncates sidecar files, which
	// drops watches on the files themselves.
	dir := filepath.Dir(dbPath)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(dbPath)
	applog.Info("storage.watch", "path", dbPath)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			applog.Error("storage.watch", err)
		}
	}
}
