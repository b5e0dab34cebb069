// Package watcher provides a debounced filesystem-change notifier for
// exactly two configuration files, bridging fsnotify's directory-level
// events to per-file debounced callbacks.
package watcher

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/giantswarm/agent-mcp-gateway/pkg/logging"
)

// Callback is invoked with a watched file's resolved absolute path once its
// debounce window has elapsed quietly.
type Callback func(path string)

// Watcher monitors two specific files by watching their parent
// directory/directories and filtering events down to exact path matches.
// Each file gets its own pending debounce timer; a burst of N events on the
// same file within the debounce window yields exactly one callback
// invocation.
type Watcher struct {
	mcpConfigPath  string
	rulesPath      string
	onMCPChanged   Callback
	onRulesChanged Callback
	debounce       time.Duration

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	timers  map[string]*time.Timer
	done    chan struct{}
}

// New constructs a Watcher for the two given files. Paths are resolved to
// absolute form immediately so later event-path comparisons are exact.
func New(mcpConfigPath, rulesPath string, onMCPChanged, onRulesChanged Callback, debounce time.Duration) (*Watcher, error) {
	absMCP, err := filepath.Abs(mcpConfigPath)
	if err != nil {
		return nil, err
	}
	absRules, err := filepath.Abs(rulesPath)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		mcpConfigPath:  absMCP,
		rulesPath:      absRules,
		onMCPChanged:   onMCPChanged,
		onRulesChanged: onRulesChanged,
		debounce:       debounce,
		timers:         make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. It is idempotent-hostile: calling Start on an
// already-running Watcher returns an error rather than silently continuing.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher is already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := uniqueDirs(filepath.Dir(w.mcpConfigPath), filepath.Dir(w.rulesPath))
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
	}

	w.fsw = fsw
	w.running = true
	w.done = make(chan struct{})
	go w.processEvents(fsw, w.done)
	return nil
}

func uniqueDirs(a, b string) []string {
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

func (w *Watcher) processEvents(fsw *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("watcher", "filesystem watch error: %v", err)
		case <-done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	resolved, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	switch resolved {
	case w.mcpConfigPath:
		w.scheduleDebounced(w.mcpConfigPath, w.onMCPChanged)
	case w.rulesPath:
		w.scheduleDebounced(w.rulesPath, w.onRulesChanged)
	default:
		// Not one of the two watched files; ignore.
	}
}

// scheduleDebounced cancels any pending timer for path and starts a fresh
// one, so a burst of events within the debounce window collapses to a
// single callback invocation fired on its own goroutine (never the
// fsnotify event-reading goroutine, so a slow or panicking callback never
// stalls event delivery).
func (w *Watcher) scheduleDebounced(path string, cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.timers[path]; ok {
		existing.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("watcher", nil, "callback panicked for %s: %v", path, r)
			}
		}()
		cb(path)
	})
}

// Stop is idempotent: it cancels all pending timers, closes the underlying
// fsnotify watcher, and signals the event goroutine to exit. It returns
// without waiting for that goroutine to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	fsw := w.fsw
	done := w.done
	w.fsw = nil
	w.mu.Unlock()

	if fsw != nil {
		fsw.Close()
	}
	if done != nil {
		close(done)
	}
}
