// Package watch turns file system events in the vault into debounced,
// concurrency-bounded calls to a handler.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/semaphore"
)

// Handler receives vault-relative, slash-separated note paths.
type Handler func(path string)

// Options tune a Watcher.
type Options struct {
	Delay         time.Duration
	MaxConcurrent int
	// Extensions limits which files are reported. Defaults to ".md".
	Extensions []string
}

// Watcher watches a vault directory tree.
type Watcher struct {
	root    string
	fsw     *fsnotify.Watcher
	handler Handler
	logger  *slog.Logger
	exts    map[string]bool

	debouncer *Debouncer
	sem       *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	// mu guards stopped; wg.Add only happens while stopped is false.
	mu      sync.Mutex
	stopped bool
}

// New creates a watcher over root. Hidden directories such as .git and
// .obsidian are skipped.
func New(root string, opts Options, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".md"}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:    abs,
		fsw:     fsw,
		handler: handler,
		logger:  logger,
		exts:    make(map[string]bool, len(opts.Extensions)),
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, ext := range opts.Extensions {
		w.exts[strings.ToLower(ext)] = true
	}
	w.debouncer = NewDebouncer(opts.Delay, w.dispatch)

	if err := w.addTree(abs); err != nil {
		fsw.Close()
		cancel()
		return nil, err
	}
	return w, nil
}

// Start begins delivering events.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop drops pending events, waits for running handlers and closes the
// underlying watcher.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()

		if n := w.debouncer.pending(); n > 0 {
			w.logger.Info("watch: dropping pending changes", "count", n)
		}
		w.debouncer.Stop()
		err = w.fsw.Close()
		w.cancel()
		w.wg.Wait()
	})
	return err
}

// SetDelay changes the debounce delay.
func (w *Watcher) SetDelay(d time.Duration) {
	w.debouncer.SetDelay(d)
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch: watcher error", "err", err)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watch: failed to watch new folder", "path", ev.Name, "err", err)
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if !w.exts[strings.ToLower(filepath.Ext(ev.Name))] {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	w.debouncer.Trigger(filepath.ToSlash(rel))
}

// dispatch runs the handler once a slot is free. Calls that race with Stop
// are dropped.
func (w *Watcher) dispatch(path string) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		if err := w.sem.Acquire(w.ctx, 1); err != nil {
			return
		}
		defer w.sem.Release(1)
		w.handler(path)
	}()
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
