package skills

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher keeps a live bundle registry in sync with the skills root so new
// or edited bundles become routable without a restart. Rapid saves are
// debounced into a single rebuild.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	loader      *Loader
	logger      *zap.Logger
	registry    *Registry
	onChange    func(*Registry)
	debounceMap map[string]time.Time
	debounceDur time.Duration
	tickDur     time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	Events        int
	Rebuilds      int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// NewWatcher creates a watcher over the loader's root. onChange, if not nil,
// runs after every rebuild with the fresh registry.
func NewWatcher(loader *Loader, onChange func(*Registry), logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		watcher:     fsw,
		loader:      loader,
		logger:      logger,
		onChange:    onChange,
		registry:    NewRegistry(nil),
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		tickDur:     100 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start builds the initial registry and begins watching. Non-blocking; the
// event loop runs in a goroutine until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	root := w.loader.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		w.logger.Warn("skills root could not be created", zap.String("root", root), zap.Error(err))
	}

	if err := w.watcher.Add(root); err != nil {
		w.logger.Warn("initial watch failed", zap.String("root", root), zap.Error(err))
	}
	// fsnotify is not recursive; bundle directories are watched individually
	// so SKILL.md edits inside them are seen.
	if entries, err := os.ReadDir(root); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				if err := w.watcher.Add(filepath.Join(root, entry.Name())); err != nil {
					w.logger.Warn("bundle watch failed", zap.String("dir", entry.Name()), zap.Error(err))
				}
			}
		}
	}

	w.rebuild(false)
	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("closing skills watcher", zap.Error(err))
	}
}

// Registry returns the current snapshot.
func (w *Watcher) Registry() *Registry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.registry
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tickDur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("skills watcher", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	// A newly created bundle directory needs its own watch before the
	// SKILL.md inside it appears.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn("bundle watch failed", zap.String("dir", event.Name), zap.Error(err))
			}
		}
	}

	w.logger.Debug("skills event", zap.String("op", event.Op.String()), zap.String("path", event.Name))

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processSettled rebuilds once per batch of events that outlasted the
// debounce window.
func (w *Watcher) processSettled() {
	w.mu.Lock()
	now := time.Now()
	settled := 0
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			delete(w.debounceMap, path)
			settled++
		}
	}
	w.mu.Unlock()

	if settled > 0 {
		w.rebuild(true)
	}
}

func (w *Watcher) rebuild(notify bool) {
	reg, err := w.loader.Registry()
	if err != nil {
		w.logger.Error("skills rebuild failed", zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.registry = reg
	w.stats.Rebuilds++
	cb := w.onChange
	w.mu.Unlock()

	w.logger.Debug("skills registry rebuilt", zap.Int("bundles", reg.Len()))
	if notify && cb != nil {
		cb(reg)
	}
}
