package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/headwind-sh/headwind/pkg/logging"
)

const (
	// DefaultDebounceInterval is the time to wait after the last change
	// before reloading.
	DefaultDebounceInterval = 500 * time.Millisecond

	// DefaultWatchInterval is the fallback polling interval when fsnotify
	// is not available.
	DefaultWatchInterval = 30 * time.Second

	// configMapDataDir is the symlink a mounted ConfigMap swaps on update.
	configMapDataDir = "..data"
)

// WatcherConfig holds configuration for the config watcher.
type WatcherConfig struct {
	// ConfigDir is the directory containing config.yaml.
	ConfigDir string

	// WatchInterval is the fallback polling interval.
	WatchInterval time.Duration

	// Debounce is the quiet period before a reload.
	Debounce time.Duration

	// OnChange receives every successfully reloaded configuration.
	OnChange func(HeadwindConfig)
}

// Watcher reloads config.yaml when it changes. It watches the directory
// rather than the file so that atomic replacements, including ConfigMap
// symlink swaps, are seen. Invalid files are logged and ignored.
type Watcher struct {
	mu sync.Mutex

	config WatcherConfig

	// fsWatcher is nil when falling back to polling.
	fsWatcher *fsnotify.Watcher

	stopCh  chan struct{}
	running bool

	lastModTime time.Time

	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewWatcher creates a config watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.WatchInterval <= 0 {
		config.WatchInterval = DefaultWatchInterval
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounceInterval
	}
	return &Watcher{config: config}
}

// Start begins watching for configuration changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("ConfigWatcher", "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges(w.stopCh)
		return nil
	}

	if err := watcher.Add(w.config.ConfigDir); err != nil {
		logging.Warn("ConfigWatcher", "Failed to watch directory %s, falling back to polling: %v",
			w.config.ConfigDir, err)
		watcher.Close()
		go w.pollForChanges(w.stopCh)
		return nil
	}
	w.fsWatcher = watcher

	go w.processEvents(w.stopCh, watcher.Events, watcher.Errors)

	logging.Info("ConfigWatcher", "Watching %s for configuration changes", w.config.ConfigDir)
	return nil
}

func (w *Watcher) processEvents(stopCh <-chan struct{}, eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if name != configFileName && name != configMapDataDir {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	logging.Debug("ConfigWatcher", "Configuration changed: %s (%s)", event.Name, event.Op)
	w.reloadDebounced()
}

func (w *Watcher) reloadDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, w.reload)
}

func (w *Watcher) reload() {
	w.mu.Lock()
	running := w.running
	callback := w.config.OnChange
	w.mu.Unlock()

	if !running {
		return
	}

	cfg, err := LoadConfig(w.config.ConfigDir)
	if err != nil {
		logging.Error("ConfigWatcher", err, "Ignoring invalid configuration change")
		return
	}
	logging.Info("ConfigWatcher", "Reloaded configuration from %s", ConfigFilePath(w.config.ConfigDir))
	if callback != nil {
		callback(cfg)
	}
}

func (w *Watcher) pollForChanges(stopCh <-chan struct{}) {
	ticker := time.NewTicker(w.config.WatchInterval)
	defer ticker.Stop()

	w.checkForChanges()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if w.checkForChanges() {
				logging.Debug("ConfigWatcher", "Configuration change detected via polling")
				w.reloadDebounced()
			}
		}
	}
}

// checkForChanges reports whether config.yaml was modified since the
// previous check.
func (w *Watcher) checkForChanges() bool {
	info, err := os.Stat(ConfigFilePath(w.config.ConfigDir))
	if err != nil {
		return false
	}

	modTime := info.ModTime()
	changed := !w.lastModTime.IsZero() && modTime.After(w.lastModTime)
	w.lastModTime = modTime
	return changed
}

// Stop stops the watcher and cancels any pending reload.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("ConfigWatcher", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}

	logging.Info("ConfigWatcher", "Stopped configuration watcher")
	return nil
}

// IsRunning returns whether the watcher is currently active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
