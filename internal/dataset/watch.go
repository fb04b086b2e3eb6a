package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"coverga/internal/problem"
)

const DefaultDebounce = 250 * time.Millisecond

// Watch reloads the dataset whenever either file is written, created or
// renamed into place, and hands each successfully built instance to onReload.
// Bursts of events within debounce collapse into one reload. A reload that
// fails is logged and the previous instance stays in use. Watch blocks until
// ctx is done.
func Watch(ctx context.Context, opts Options, debounce time.Duration, logger *slog.Logger, onReload func(*problem.Instance)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create dataset watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]struct{}, 2)
	dirs := make(map[string]struct{}, 2)
	for _, path := range []string{opts.CoveragePath, opts.CostPath} {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	// Editors and copy tools often replace files, so the directories are
	// watched rather than the files themselves.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := targets[abs]; !ok {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("dataset watcher error", "error", err)
		case <-timer.C:
			instance, err := Load(opts)
			if err != nil {
				logger.Error("dataset reload failed", "coverage", opts.CoveragePath, "cost", opts.CostPath, "error", err)
				continue
			}
			logger.Info("dataset reloaded",
				"clients", instance.Clients(),
				"facilities", instance.Facilities(),
			)
			onReload(instance)
		}
	}
}
