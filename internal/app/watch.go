package app

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the event bursts editors produce on save.
const watchDebounce = 300 * time.Millisecond

// runWatch executes the pipeline, then re-loads and re-executes it whenever
// a file under the pipeline or modules path changes. In watch mode a failed
// run is reported and watched past, not fatal: the loop exists for the
// edit-rerun cycle while a workflow is being developed.
func (a *App) runWatch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, path := range []string{a.appConfig.PipelinePath, a.appConfig.ModulesPath} {
		if path == "" {
			continue
		}
		if err := watcher.Add(path); err != nil {
			a.logger.Warn("Cannot watch path.", "path", path, "error", err)
		}
	}

	runAndReport := func() {
		if err := a.runOnce(ctx); err != nil {
			a.logger.Error("Pipeline run failed; watching for changes.", "error", err)
		}
	}

	a.logger.Info("👀 Watch mode active.", "pipeline", a.appConfig.PipelinePath, "modules", a.appConfig.ModulesPath)
	runAndReport()

	var debounce *time.Timer
	rerun := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			a.logger.Debug("Change detected.", "file", event.Name, "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case rerun <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("Watcher error.", "error", err)

		case <-rerun:
			if err := a.reload(ctx); err != nil {
				a.logger.Error("Configuration reload failed; watching for changes.", "error", err)
				continue
			}
			runAndReport()
		}
	}
}
