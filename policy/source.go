package policy

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/ragmesh/logging"
)

// Source yields the policy currently in effect. Implementations must be safe
// for concurrent use.
type Source interface {
	Current() *Policy
}

type staticSource struct{ p *Policy }

func (s staticSource) Current() *Policy { return s.p }

// Static returns a Source that always yields p. A nil p yields Default().
func Static(p *Policy) Source {
	if p == nil {
		p = Default()
	}
	return staticSource{p: p}
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Logger logging.Logger
	// OnReload is invoked after every successful reload.
	OnReload func(*Policy)
}

// Watcher serves a policy loaded from a YAML file and reloads it whenever
// the file changes. A reload that fails to parse keeps the previous policy.
type Watcher struct {
	path    string
	current atomic.Pointer[Policy]
	fsw     *fsnotify.Watcher
	opts    WatcherOptions
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewWatcher loads the policy at path and starts watching its directory.
func NewWatcher(path string, optFns ...func(o *WatcherOptions)) (*Watcher, error) {
	opts := WatcherOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve policy path: %w", err)
	}
	p, err := Load(abs)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create policy watcher: %w", err)
	}
	// Watch the directory: editors often replace files via rename.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch policy dir: %w", err)
	}

	w := &Watcher{path: abs, fsw: fsw, opts: opts, done: make(chan struct{})}
	w.current.Store(p)
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Current implements Source.
func (w *Watcher) Current() *Policy { return w.current.Load() }

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string { return w.path }

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn("Policy watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	p, err := Load(w.path)
	if err != nil {
		w.opts.Logger.Warn("Policy reload failed; keeping previous policy", "path", w.path, "error", err)
		return
	}
	w.current.Store(p)
	w.opts.Logger.Info("Policy reloaded", "path", w.path, "version", p.Version)
	if w.opts.OnReload != nil {
		w.opts.OnReload(p)
	}
}
