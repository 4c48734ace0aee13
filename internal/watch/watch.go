// Package watch reports debounced changes to the files that shape a running
// Quill site: module definitions, admin routes, navigation and view overrides.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Dirs are the directories, relative to the app root, whose contents trigger
// a reload. Subdirectories are watched as they appear.
var Dirs = []string{
	"app/modules",
	"routes",
	"config",
	"resources/views",
}

// Event is a debounced change to a single path.
type Event struct {
	Path string
	Op   fsnotify.Op
	At   time.Time
}

// Watcher watches an app root and emits consolidated events through Events().
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	logger  *log.Logger

	debounceWindow time.Duration
	events         chan Event
	errors         chan error

	mu      sync.Mutex
	pending map[string]fsnotify.Op
	timer   *time.Timer

	startOnce sync.Once
	started   bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for a burst of writes to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceWindow = d
		}
	}
}

// WithLogger sets the logger used for dropped errors.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l.WithPrefix("watch")
		}
	}
}

// New creates a watcher for the given app root. Missing directories are
// created so they can be watched before anything is generated into them.
func New(root string, opts ...Option) (*Watcher, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:           filepath.Clean(root),
		watcher:        fsw,
		logger:         log.Default().WithPrefix("watch"),
		debounceWindow: 150 * time.Millisecond,
		events:         make(chan Event, 64),
		errors:         make(chan error, 16),
		pending:        make(map[string]fsnotify.Op),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, rel := range Dirs {
		dir := filepath.Join(w.root, rel)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("creating %s: %w", rel, err)
		}
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Events returns a channel of debounced events. It is closed on Stop().
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns a channel of watcher errors. It is closed on Stop().
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start starts the event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.mu.Lock()
		w.started = true
		w.mu.Unlock()
		go w.loop(ctx)
	})
}

// Stop stops the watcher and closes its channels. It is safe to call before
// Start.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.doneCh
		} else {
			close(w.events)
			close(w.errors)
		}
	})
	return err
}

// Run calls fn once per debounced batch of changes until ctx is done. A
// failing fn is logged and does not stop the loop.
func (w *Watcher) Run(ctx context.Context, fn func([]Event) error) {
	w.Start(ctx)
	for {
		select {
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			batch := []Event{ev}
		drain:
			for {
				select {
				case more, ok := <-w.events:
					if !ok {
						break drain
					}
					batch = append(batch, more)
				default:
					break drain
				}
			}
			if err := fn(batch); err != nil {
				w.logger.Error("reload failed", "error", err)
			}
		case err, ok := <-w.errors:
			if ok {
				w.logger.Warn("watch error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.events)
	defer close(w.errors)

	for {
		var timerC <-chan time.Time
		w.mu.Lock()
		if w.timer != nil {
			timerC = w.timer.C
		}
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			w.flush()
			return
		case <-w.stopCh:
			w.flush()
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.flush()
				return
			}
			w.sendError(err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				w.flush()
				return
			}
			if !w.isRelevant(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.sendError(err)
					}
				}
			}
			w.record(ev.Name, ev.Op)
		case <-timerC:
			w.flush()
		}
	}
}

// isRelevant drops editor swap files and the sqlite journal, which can live
// under config/ in some layouts.
func (w *Watcher) isRelevant(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."),
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, "-wal"),
		strings.HasSuffix(base, "-shm"),
		strings.HasSuffix(base, "-journal"):
		return false
	}
	return true
}

func (w *Watcher) record(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] |= op

	if w.timer == nil {
		w.timer = time.NewTimer(w.debounceWindow)
		return
	}

	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(w.debounceWindow)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string]fsnotify.Op)

	if w.timer != nil {
		if !w.timer.Stop() {
			select {
			case <-w.timer.C:
			default:
			}
		}
		w.timer = nil
	}
	w.mu.Unlock()

	now := time.Now().UTC()
	for path, op := range pending {
		select {
		case w.events <- Event{Path: path, Op: op, At: now}:
		default:
			w.logger.Warn("watch event dropped", "path", path)
		}
	}
}

func (w *Watcher) sendError(err error) {
	if err == nil {
		return
	}
	select {
	case w.errors <- err:
	default:
		w.logger.Warn("watch error dropped", "error", err)
	}
}

// Rel returns the event path relative to root, or the path unchanged when it
// lies outside.
func (w *Watcher) Rel(ev Event) string {
	rel, err := filepath.Rel(w.root, ev.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ev.Path
	}
	return filepath.ToSlash(rel)
}
