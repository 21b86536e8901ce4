package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last file event before
// reloading. Editors often write a file in several steps.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads the configuration at configPath whenever it changes on disk
// and passes the result to onChange. A file that fails to load is reported
// through the error argument; the previous configuration stays in effect
// for the caller.
//
// The parent directory is watched rather than the file so that editors that
// save by rename are still seen. Events that leave no file behind (a move or
// delete) are ignored until the file reappears. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, configPath string, debounce time.Duration, onChange func(*Config, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(configPath)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", configPath, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	reloadTimer := time.NewTimer(debounce)
	reloadTimer.Stop()
	defer reloadTimer.Stop()
	pendingReload := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-reloadTimer.C:
			if !pendingReload {
				continue
			}
			pendingReload = false
			// LoadConfig would recreate a file that was moved or deleted.
			if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
				continue
			}
			onChange(LoadConfig(abs))

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pendingReload = true
				reloadTimer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onChange(nil, fmt.Errorf("watch %s: %w", abs, err))
		}
	}
}
