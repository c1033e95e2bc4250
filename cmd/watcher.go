package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"chatwidget-cli/cmd/config"
	"chatwidget-cli/cmd/utils"

	"github.com/fsnotify/fsnotify"
)

// configDebounce is the window in which repeated events for one file count as one change.
const configDebounce = 100 * time.Millisecond

// StartConfigWatcher watches dir (and the directory of configPath, when it
// lives elsewhere) and calls onChange after a chatwidget config file or .env
// is written, created, renamed or removed. The watcher stops when ctx is done.
func StartConfigWatcher(ctx context.Context, dir, configPath string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch directories rather than files so editors that replace the file
	// on save are still seen.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	explicit := ""
	if configPath != "" {
		explicit = filepath.Clean(configPath)
		if d := filepath.Dir(explicit); d != filepath.Clean(dir) {
			if err := watcher.Add(d); err != nil {
				OutputWarning("Failed to watch config directory %s: %v", d, err)
			}
		}
	}

	relevant := func(name string) bool {
		name = filepath.Clean(name)
		if explicit != "" && name == explicit {
			return true
		}
		if filepath.Dir(name) != filepath.Clean(dir) {
			return false
		}
		return config.IsConfigFile(name) || filepath.Base(name) == ".env"
	}

	go func() {
		defer watcher.Close()

		// Track last reload per file to debounce rapid successive events
		lastModTimes := make(map[string]time.Time)

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
					continue
				}
				if !relevant(event.Name) {
					continue
				}
				if last, exists := lastModTimes[event.Name]; exists && time.Since(last) < configDebounce {
					continue
				}

				// Wait briefly to let the file write complete
				time.Sleep(20 * time.Millisecond)

				lastModTimes[event.Name] = time.Now()
				utils.LogDebug(fmt.Sprintf("config change detected: %s (%s)", event.Name, event.Op))
				onChange()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				OutputWarning("Watcher error: %v", err)
			}
		}
	}()

	OutputDebug("Watching %s for config changes", dir)
	utils.LogDebug(fmt.Sprintf("Watching directory: %s", dir))
	return nil
}
