package reload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned by a closed watcher.
var ErrClosed = errors.New("reload: watcher closed")

// ApplyFunc receives the template sources after a reload.
// deferred.Pass.SetShaderSource and progen.Generator.SetSourceCode fit.
type ApplyFunc func(vertex, fragment string)

// Watcher watches a vertex and a fragment template file.
//
// File system events only mark the templates as changed. The sources are
// read and applied by Poll on the caller's goroutine, so the apply function
// never runs concurrently with rendering.
type Watcher struct {
	vertexPath   string
	fragmentPath string
	apply        ApplyFunc

	fsw     *fsnotify.Watcher
	changed chan struct{}
	pending atomic.Bool
	reloads atomic.Int64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New starts watching the two template files. The files must exist.
func New(vertexPath, fragmentPath string, apply ApplyFunc) (*Watcher, error) {
	if apply == nil {
		return nil, errors.New("reload: nil apply function")
	}
	for _, p := range []string{vertexPath, fragmentPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("reload: %w", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: create watcher: %w", err)
	}
	w := &Watcher{
		vertexPath:   filepath.Clean(vertexPath),
		fragmentPath: filepath.Clean(fragmentPath),
		apply:        apply,
		fsw:          fsw,
		changed:      make(chan struct{}, 1),
		done:         make(chan struct{}),
	}

	// Editors often replace files by renaming, which drops a watch on the
	// file itself. Watch the directories instead.
	dirs := map[string]bool{filepath.Dir(w.vertexPath): true, filepath.Dir(w.fragmentPath): true}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("reload: watch %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.run()
	slogger().Debug("reload: watching templates", "vertex", w.vertexPath, "fragment", w.fragmentPath)
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.isTemplate(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slogger().Debug("reload: template changed", "file", event.Name, "op", event.Op.String())
			w.pending.Store(true)
			select {
			case w.changed <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slogger().Warn("reload: watcher error", "err", err)
		}
	}
}

func (w *Watcher) isTemplate(name string) bool {
	name = filepath.Clean(name)
	return name == w.vertexPath || name == w.fragmentPath
}

// Changed returns a channel that receives a value after a template changed.
// Several changes may be coalesced into one value.
func (w *Watcher) Changed() <-chan struct{} { return w.changed }

// Pending reports whether a change is waiting for Poll.
func (w *Watcher) Pending() bool { return w.pending.Load() }

// Reloads returns how many times the templates were applied.
func (w *Watcher) Reloads() int { return int(w.reloads.Load()) }

// Poll applies the templates if they changed since the last call. It
// reports whether they were applied. After a read error the change stays
// pending so that the next Poll retries.
func (w *Watcher) Poll() (bool, error) {
	if w.isClosed() {
		return false, ErrClosed
	}
	if !w.pending.Swap(false) {
		return false, nil
	}
	if err := w.Load(); err != nil {
		w.pending.Store(true)
		return false, err
	}
	return true, nil
}

// Load reads both templates and applies them.
func (w *Watcher) Load() error {
	if w.isClosed() {
		return ErrClosed
	}
	vertex, err := os.ReadFile(w.vertexPath)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	fragment, err := os.ReadFile(w.fragmentPath)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	w.apply(string(vertex), string(fragment))
	n := w.reloads.Add(1)
	slogger().Info("reload: templates applied", "reloads", n)
	return nil
}

func (w *Watcher) isClosed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fsw.Close()
		w.wg.Wait()
	})
	return w.closeErr
}
