package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeModify
	ChangeUnlink
)

func (c ChangeType) String() string {
	switch c {
	case ChangeAdd:
		return "ADD"
	case ChangeModify:
		return "MODIFY"
	case ChangeUnlink:
		return "UNLINK"
	default:
		return "UNKNOWN"
	}
}

// Event is a debounced file change, with Path relative to the watched root.
type Event struct {
	Type ChangeType
	Path string
}

// Handler receives debounced events. Called from timer goroutines; after
// Stop returns no further calls are made.
type Handler func(Event)

// Config wires filtering into the watcher without depending on the indexer
// package. ShouldIgnore and ShouldSkipDir take root-relative paths.
type Config struct {
	Root          string
	Debounce      time.Duration
	ShouldIgnore  func(relPath string) bool
	ShouldSkipDir func(relPath string) bool
	Extensions    map[string]bool
}

// Watcher observes a directory tree with fsnotify and coalesces rapid
// changes per file: each event resets that file's debounce timer, so a
// burst of writes yields one callback.
type Watcher struct {
	cfg     Config
	watcher *fsnotify.Watcher
	handler Handler
	done    chan struct{}

	mu      sync.Mutex
	pending map[string]ChangeType
	timers  map[string]*time.Timer
	gens    map[string]uint64
	stopped bool
	wg      sync.WaitGroup
}

func New(cfg Config, handler Handler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	return &Watcher{
		cfg:     cfg,
		watcher: fsw,
		handler: handler,
		done:    make(chan struct{}),
		pending: make(map[string]ChangeType),
		timers:  make(map[string]*time.Timer),
		gens:    make(map[string]uint64),
	}, nil
}

// Start registers the root tree and begins dispatching events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.cfg.Root); err != nil {
		return err
	}

	go w.processEvents(ctx)

	return nil
}

// Stop halts watching and waits for in-flight callbacks. When it returns,
// no handler call is running or will run.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	for path, t := range w.timers {
		if t.Stop() {
			// Timer had not fired; release its pending callback slot.
			w.wg.Done()
		}
		delete(w.timers, path)
	}
	w.pending = make(map[string]ChangeType)
	w.mu.Unlock()

	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if !info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.cfg.Root, path)
		if err != nil {
			return nil
		}

		if relPath != "." && w.cfg.ShouldSkipDir != nil && w.cfg.ShouldSkipDir(relPath) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			log.Printf("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
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
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.cfg.Root, event.Name)
	if err != nil {
		return
	}

	if strings.HasPrefix(filepath.Base(relPath), ".") {
		return
	}
	if w.cfg.ShouldIgnore != nil && w.cfg.ShouldIgnore(relPath) {
		return
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	if !w.cfg.Extensions[ext] {
		// Newly created directories get watched so their files show up.
		if event.Has(fsnotify.Create) {
			info, err := os.Stat(event.Name)
			if err == nil && info.IsDir() {
				if err := w.addRecursive(event.Name); err != nil {
					log.Printf("Failed to add new directory %s: %v", event.Name, err)
				}
			}
		}
		return
	}

	var changeType ChangeType
	switch {
	case event.Has(fsnotify.Create):
		changeType = ChangeAdd
	case event.Has(fsnotify.Write):
		changeType = ChangeModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		changeType = ChangeUnlink
	default:
		return
	}

	w.debounce(filepath.ToSlash(relPath), changeType)
}

// debounce records the change and (re)arms the per-path timer. An unlink
// followed quickly by a create is collapsed to a modify, since the file
// ends up replaced.
func (w *Watcher) debounce(path string, changeType ChangeType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	if existing, ok := w.pending[path]; ok {
		if existing == ChangeUnlink && changeType != ChangeUnlink {
			changeType = ChangeModify
		}
	}
	w.pending[path] = changeType

	if t, ok := w.timers[path]; ok {
		if !t.Stop() {
			// Already fired; its callback settles the previous arm.
			w.wg.Add(1)
		}
	} else {
		w.wg.Add(1)
	}
	// Each arm gets a fresh generation. A fire whose generation has been
	// superseded by a re-arm must not deliver; the newer timer owns the path.
	w.gens[path]++
	gen := w.gens[path]
	w.timers[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.fire(path, gen)
	})
}

func (w *Watcher) fire(path string, gen uint64) {
	defer w.wg.Done()

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	if w.gens[path] != gen {
		// A newer event re-armed the timer for this path while this fire was
		// waiting on the lock. Leave pending and timers alone so the live
		// timer delivers after a full quiet window.
		w.mu.Unlock()
		return
	}
	changeType, ok := w.pending[path]
	delete(w.pending, path)
	delete(w.timers, path)
	w.mu.Unlock()

	if !ok {
		return
	}

	w.handler(Event{Type: changeType, Path: path})
}
