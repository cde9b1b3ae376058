package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/laitim2001/itsm-intent-router/pkg/observability/logging"
	"github.com/laitim2001/itsm-intent-router/pkg/observability/metrics"
)

// debounce window for editors/ConfigMap updates that emit several events
// for a single logical write.
const reloadDebounce = 250 * time.Millisecond

// Watch re-parses the config file whenever it changes on disk and replaces
// the global table atomically. A parse or strict-validation failure keeps
// the previous table in place. Blocks until ctx is cancelled.
func Watch(ctx context.Context, configPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: ConfigMap mounts and most
	// editors replace the file via rename, which drops a file-level watch.
	dir := filepath.Dir(configPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(configPath)

	logging.Infof("Watching %s for config changes", target)

	var timer *time.Timer
	reload := func() {
		cfg, err := Parse(target)
		if err != nil {
			metrics.RecordConfigReload("error")
			logging.Errorf("Config reload failed, keeping previous config: %v", err)
			return
		}
		Replace(cfg)
		metrics.RecordConfigReload("success")
		logging.Infof("Config reloaded from %s", target)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warnf("Config watcher error: %v", err)
		}
	}
}
