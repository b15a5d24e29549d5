// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/StoreScrapexter/internal/utils"
)

// reloadDebounce absorbs the burst of events editors produce for one save.
const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes and passes every
// valid new version to the registered callbacks. Invalid edits are logged and
// the previous configuration stays in effect.
type Watcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	callbacks  []func(*Config)
	logger     utils.Logger
	mu         sync.RWMutex
	stopped    bool
	done       chan struct{}
}

// NewWatcher creates a new configuration file watcher
func NewWatcher(configPath string, logger utils.Logger) (*Watcher, error) {
	if logger == nil {
		logger = utils.NewComponentLogger("config-watcher")
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory rather than the file: editors that save by
	// renaming a temp file would otherwise drop the watch.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw := &Watcher{
		watcher:    watcher,
		configPath: absPath,
		logger:     logger,
		done:       make(chan struct{}),
	}
	go cw.watch()
	return cw, nil
}

// OnChange registers a callback to be called when the config changes
func (cw *Watcher) OnChange(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *Watcher) watch() {
	defer close(cw.done)

	var timer *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, cw.handleConfigChange)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warnf("config watcher error: %v", err)
		}
	}
}

func (cw *Watcher) handleConfigChange() {
	cw.mu.RLock()
	if cw.stopped {
		cw.mu.RUnlock()
		return
	}
	callbacks := make([]func(*Config), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	config, err := LoadFromFile(cw.configPath)
	if err != nil {
		cw.logger.Errorf("failed to reload config, keeping previous: %v", err)
		return
	}
	cw.logger.Infof("reloaded configuration from %s", cw.configPath)

	for _, callback := range callbacks {
		callback(config)
	}
}

// Close stops the watcher and releases resources
func (cw *Watcher) Close() error {
	cw.mu.Lock()
	if cw.stopped {
		cw.mu.Unlock()
		return nil
	}
	cw.stopped = true
	cw.mu.Unlock()

	err := cw.watcher.Close()
	<-cw.done
	return err
}
