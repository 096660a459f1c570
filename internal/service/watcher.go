package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events a single file write produces.
const DefaultDebounce = 250 * time.Millisecond

// Reloader is anything the watcher can refresh.
type Reloader interface {
	Name() string
	Paths() []string
	Reload(ctx context.Context) (*Snapshot, error)
}

// Watcher reloads plots when one of their files changes on disk.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
	owners   map[string][]Reloader

	// OnReload is called after every reload attempt.
	OnReload func(name string, err error)
}

// NewWatcher watches the directories holding every path of every plot.
// Directories are watched instead of files so atomic rename-over writes
// are seen.
func NewWatcher(plots []Reloader, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fs:       fw,
		logger:   logger,
		debounce: DefaultDebounce,
		owners:   make(map[string][]Reloader),
	}
	dirs := make(map[string]bool)
	for _, p := range plots {
		for _, path := range p.Paths() {
			abs, err := filepath.Abs(path)
			if err != nil {
				fw.Close()
				return nil, err
			}
			w.owners[abs] = append(w.owners[abs], p)
			dirs[filepath.Dir(abs)] = true
		}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// SetDebounce overrides DefaultDebounce.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// debouncer runs at most one pending call per key. A newer trigger
// replaces the pending call for its key.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, pending: make(map[string]*time.Timer)}
}

func (d *debouncer) trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		if d.done(key, t) {
			fn()
		}
	})
	d.pending[key] = t
}

// done clears key if t is still its pending timer. A timer that fired
// after being replaced reports false and leaves the newer entry alone.
func (d *debouncer) done(key string, t *time.Timer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending[key] != t {
		return false
	}
	delete(d.pending, key)
	return true
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.pending {
		t.Stop()
		delete(d.pending, key)
	}
}

// Run processes events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	deb := newDebouncer(w.debounce)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			for _, p := range w.owners[abs] {
				p := p
				deb.trigger(p.Name(), func() { w.reload(ctx, p, abs) })
			}
		}
	}
}

func (w *Watcher) reload(ctx context.Context, p Reloader, path string) {
	if ctx.Err() != nil {
		return
	}
	_, err := p.Reload(ctx)
	if err != nil {
		w.logger.Error("reload failed", zap.String("plot", p.Name()), zap.String("file", path), zap.Error(err))
	} else {
		w.logger.Info("reloaded after change", zap.String("plot", p.Name()), zap.String("file", path))
	}
	if w.OnReload != nil {
		w.OnReload(p.Name(), err)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
