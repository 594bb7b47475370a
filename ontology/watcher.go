package ontology

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for further writes before
// reloading the file.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads an ontology file into a Model whenever it changes.
type Watcher struct {
	path     string
	model    *Model
	logger   *slog.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	// OnReload, if set, is called after every reload attempt.
	OnReload func(classes int, err error)

	pendingMu sync.Mutex
	pending   bool

	runMu   sync.Mutex
	running bool
	done    chan struct{}
}

// NewWatcher creates a watcher for path. The parent directory is watched so
// that editors replacing the file atomically are noticed.
func NewWatcher(path string, model *Model, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve ontology path: %w", err)
	}
	return &Watcher{
		path:     abs,
		model:    model,
		logger:   logger,
		debounce: DefaultDebounce,
		watcher:  fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start loads the file once and begins watching it.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.reload(); err != nil {
		w.abort()
		return err
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.abort()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.runMu.Lock()
	w.running = true
	w.runMu.Unlock()
	go w.processEvents(ctx)

	w.logger.Info("Ontology watcher started", "path", w.path)
	return nil
}

// Stop stops watching and waits for the event loop to exit. A watcher that
// never started only releases its fsnotify handle.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	w.runMu.Lock()
	running := w.running
	w.runMu.Unlock()
	if running {
		<-w.done
	}
	return err
}

func (w *Watcher) abort() {
	w.watcher.Close()
	close(w.done)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.pendingMu.Lock()
				w.pending = true
				w.pendingMu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Ontology watcher error", "error", err)

		case <-ticker.C:
			w.pendingMu.Lock()
			pending := w.pending
			w.pending = false
			w.pendingMu.Unlock()
			if pending {
				if err := w.reload(); err != nil {
					w.logger.Warn("Failed to reload ontology", "path", w.path, "error", err)
				}
			}
		}
	}
}

func (w *Watcher) reload() error {
	hierarchy, err := LoadFile(w.path)
	if err == nil {
		w.model.Replace(hierarchy)
		w.logger.Debug("Ontology loaded", "path", w.path, "classes", w.model.Len())
	}
	if w.OnReload != nil {
		w.OnReload(w.model.Len(), err)
	}
	return err
}
