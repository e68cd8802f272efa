// Package reload holds a live, hot-swappable matcher.Matcher behind an
// atomic pointer, optionally driven by an fsnotify watch over the
// configuration path so a bad edit never takes down a running process —
// a compile failure simply leaves the previous Matcher in place.
package reload

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/danielsvitols/tornado/internal/config"
	"github.com/danielsvitols/tornado/internal/matcher"
	"github.com/fsnotify/fsnotify"
)

// Manager holds the currently active Matcher and knows how to recompile it
// from a configuration path.
type Manager struct {
	path    string
	current atomic.Pointer[matcher.Matcher]

	// onSwap, if set, is called after every successful reload with the
	// newly active Matcher and the config it was compiled from. NewManager
	// compiles the first generation before a callback can be registered,
	// so that generation is not passed to onSwap. Used to feed
	// configstore.
	onSwap func(*matcher.Matcher, config.Node)
}

// NewManager compiles the configuration at path and returns a Manager
// holding the result. A compile error here is fatal — there is no previous
// generation to fall back to.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// OnSwap registers a callback invoked after each successful reload.
func (m *Manager) OnSwap(fn func(*matcher.Matcher, config.Node)) {
	m.onSwap = fn
}

// Current returns the active Matcher. Safe for concurrent use with Reload.
func (m *Manager) Current() *matcher.Matcher {
	return m.current.Load()
}

// Reload recompiles the configuration at path and atomically swaps it in.
// If compilation fails, the previous Matcher remains active and the error
// is returned to the caller (e.g. to log and keep serving with the old
// generation).
func (m *Manager) Reload() error {
	return m.reload()
}

func (m *Manager) reload() error {
	node, err := config.Load(m.path)
	if err != nil {
		return fmt.Errorf("reload: loading %s: %w", m.path, err)
	}
	next, err := matcher.New(node)
	if err != nil {
		return fmt.Errorf("reload: compiling %s: %w", m.path, err)
	}

	m.current.Store(next)
	if m.onSwap != nil {
		m.onSwap(next, node)
	}
	return nil
}

// Watch starts an fsnotify watch over the Manager's configuration path
// (file or directory) and calls Reload on every write/create/rename event,
// reporting errors through onError rather than stopping the watch — one bad
// edit should not end the watch loop. Watch blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reload: fsnotify: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.path); err != nil {
		return fmt.Errorf("reload: watch %s: %w", m.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := m.reload(); err != nil && onError != nil {
				onError(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
