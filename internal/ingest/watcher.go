package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures optional Watcher behavior beyond its required
// spool directory and stability wait.
type WatcherOptions struct {
	// ArchiveDir, if set, is where ArchiveFile moves processed files to
	// instead of deleting them.
	ArchiveDir string
	// CheckInterval governs how often pending (recently-written) files are
	// re-checked for stability.
	CheckInterval time.Duration
	// MaxPendingFiles bounds the pending-file tracking map; oldest entries
	// are dropped once exceeded rather than growing unbounded.
	MaxPendingFiles int
	// ChannelBuffer sizes the Events() channel.
	ChannelBuffer int
}

const (
	defaultCheckInterval   = 1 * time.Second
	defaultMaxPendingFiles = 10000
	defaultChannelBuffer   = 64
)

// Watcher watches a spool directory's "new" subdirectory for batch files,
// waiting for each to stop changing (stabilityWait) before emitting its
// path on Events().
type Watcher struct {
	spoolDir        string
	archiveDir      string
	stabilityWait   time.Duration
	checkInterval   time.Duration
	maxPendingFiles int

	watcher *fsnotify.Watcher
	events  chan string

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a Watcher with default options.
func NewWatcher(spoolDir string, stabilityWait time.Duration) (*Watcher, error) {
	return NewWatcherWithOptions(spoolDir, stabilityWait, WatcherOptions{})
}

// NewWatcherWithOptions creates a Watcher, ensuring the spool "new"
// subdirectory (and archive directory, if configured) exist.
func NewWatcherWithOptions(spoolDir string, stabilityWait time.Duration, opts WatcherOptions) (*Watcher, error) {
	newDir := filepath.Join(spoolDir, "new")
	if err := os.MkdirAll(newDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create spool new dir: %w", err)
	}
	if opts.ArchiveDir != "" {
		if err := os.MkdirAll(opts.ArchiveDir, 0o755); err != nil {
			return nil, fmt.Errorf("ingest: create archive dir: %w", err)
		}
	}

	checkInterval := opts.CheckInterval
	if checkInterval == 0 {
		checkInterval = defaultCheckInterval
	}
	maxPending := opts.MaxPendingFiles
	if maxPending == 0 {
		maxPending = defaultMaxPendingFiles
	}
	chanBuf := opts.ChannelBuffer
	if chanBuf == 0 {
		chanBuf = defaultChannelBuffer
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ingest: fsnotify: %w", err)
	}
	if err := fsw.Add(newDir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("ingest: watch %s: %w", newDir, err)
	}

	return &Watcher{
		spoolDir:        spoolDir,
		archiveDir:      opts.ArchiveDir,
		stabilityWait:   stabilityWait,
		checkInterval:   checkInterval,
		maxPendingFiles: maxPending,
		watcher:         fsw,
		events:          make(chan string, chanBuf),
		pending:         make(map[string]time.Time),
	}, nil
}

// Events returns the channel of stable, ready-to-process file paths.
func (w *Watcher) Events() <-chan string { return w.events }

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.watcher.Close() }

// Start runs the watch loop until ctx is cancelled, scanning for existing
// files at startup and then reacting to filesystem events. It returns
// ctx.Err() on cancellation and closes Events().
func (w *Watcher) Start(ctx context.Context) error {
	defer close(w.events)

	w.scanExisting()
	w.flushStable(filepath.Join(w.spoolDir, "new"))

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	newDir := filepath.Join(w.spoolDir, "new")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.track(ev.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.scanExisting()
				continue
			}

		case <-ticker.C:
			w.flushStable(newDir)
		}
	}
}

func (w *Watcher) scanExisting() {
	newDir := filepath.Join(w.spoolDir, "new")
	entries, err := os.ReadDir(newDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w.track(filepath.Join(newDir, e.Name()))
	}
}

func (w *Watcher) track(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) >= w.maxPendingFiles {
		var oldest string
		var oldestTime time.Time
		for k, t := range w.pending {
			if oldest == "" || t.Before(oldestTime) {
				oldest, oldestTime = k, t
			}
		}
		delete(w.pending, oldest)
	}
	w.pending[path] = info.ModTime()
}

// flushStable emits every pending file whose mtime has not advanced for at
// least stabilityWait, which also re-stats to detect in-flight writes.
func (w *Watcher) flushStable(_ string) {
	w.mu.Lock()
	var ready []string
	now := time.Now()
	for path, lastMod := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.ModTime().After(lastMod) {
			w.pending[path] = info.ModTime()
			continue
		}
		if now.Sub(lastMod) >= w.stabilityWait {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.events <- path
	}
}

// ArchiveFile removes path from the spool, moving it into archiveDir when
// configured instead of deleting it outright. A missing file is not an
// error: the caller may race with another consumer.
func (w *Watcher) ArchiveFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if w.archiveDir == "" {
		return os.Remove(path)
	}

	dest := filepath.Join(w.archiveDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("ingest: archive %s: %w", path, err)
	}
	return nil
}
