package ingestion

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
)

// ResultHandler receives each analysis Watch performs. err is non-nil when
// the file could not be read or parsed; res is nil in that case.
type ResultHandler func(res *Result, err error)

// Watch analyzes each path once, then again whenever it changes, until ctx
// is cancelled. Bursts of writes are coalesced using Options.Debounce.
//
// The parent directories are watched rather than the files themselves so
// that editors which save by replacing the file are still seen.
func (a *Analyzer) Watch(ctx context.Context, paths []string, onResult ResultHandler) error {
	if len(paths) == 0 {
		return errors.New("no files to watch")
	}

	targets := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return errors.Errorf("resolving %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return errors.Errorf("watching %s: %w", p, err)
		}
		if info.IsDir() {
			return errors.Errorf("watching %s: is a directory", p)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return errors.Errorf("watching %s: %w", dir, err)
		}
	}

	for _, p := range sortedKeys(targets) {
		onResult(a.AnalyzeFile(ctx, p))
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(a.opts.Debounce)
	batchTimer.Stop() // Don't start yet

	slogctx.Info(ctx, "watching for changes", slog.Int("files", len(targets)))

	for {
		select {
		case <-ctx.Done():
			batchTimer.Stop()
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !targets[event.Name] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			changed[event.Name] = true
			batchTimer.Reset(a.opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slogctx.Warn(ctx, "watch error", slog.Any("error", err))

		case <-batchTimer.C:
			for _, p := range sortedKeys(changed) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slogctx.Debug(ctx, "re-analyzing", slog.String("file", p))
				onResult(a.AnalyzeFile(ctx, p))
			}
			changed = make(map[string]bool)
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
