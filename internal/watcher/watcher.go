// Package watcher watches a packs directory for content changes and
// reports which packs need reindexing. Events are debounced so editor
// save bursts collapse into one batch per pack.
package watcher

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
)

// Operation represents a file system operation type.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change to a pack's content.
type FileEvent struct {
	// Path is relative to the watched packs root.
	Path string
	// PackID is the top-level pack directory the path belongs to.
	PackID string
	Op     Operation
	IsDir  bool
	At     time.Time
}

// DefaultDebounceWindow is the coalescing window for file events.
const DefaultDebounceWindow = 200 * time.Millisecond

// PackWatcher watches a packs root via fsnotify and emits debounced
// event batches.
type PackWatcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger
	root      string

	events chan []FileEvent
	errs   chan error

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a pack watcher. A nil logger falls back to slog.Default.
func New(window time.Duration, logger *slog.Logger) (*PackWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = DefaultDebounceWindow
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &PackWatcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(window, logger),
		logger:    logger,
		events:    make(chan []FileEvent, 10),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
	}, nil
}

// Events returns the channel of debounced event batches.
func (w *PackWatcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *PackWatcher) Errors() <-chan error {
	return w.errs
}

// Start watches root recursively until the context is cancelled or Stop
// is called. It blocks; run it in a goroutine.
func (w *PackWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve packs root: %w", err)
	}
	w.root = abs

	if err := w.addRecursive(abs); err != nil {
		return fmt.Errorf("failed to watch packs root: %w", err)
	}

	go w.forwardBatches(ctx)

	w.logger.Info("watching packs directory", slog.String("root", abs))
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// Stop stops the watcher. Safe to call multiple times. The events
// channel is closed by the forwarding goroutine once it drains.
func (w *PackWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fsWatcher.Close()
		w.debouncer.Stop()
	})
	return err
}

func (w *PackWatcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	if shouldIgnore(rel) {
		return
	}

	isDir := false
	if info, statErr := os.Stat(event.Name); statErr == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		// New directories need their own watch to see files inside.
		if isDir {
			_ = w.fsWatcher.Add(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and friends never change content.
		return
	}

	if !isDir && !isContentFile(rel) {
		return
	}

	w.debouncer.Add(FileEvent{
		Path:   rel,
		PackID: packIDFor(rel),
		Op:     op,
		IsDir:  isDir,
		At:     time.Now(),
	})
}

func (w *PackWatcher) forwardBatches(ctx context.Context) {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			select {
			case w.events <- batch:
			default:
				w.logger.Warn("watcher event channel full, dropping batch",
					slog.Int("batch_size", len(batch)))
			}
		}
	}
}

func (w *PackWatcher) emitError(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

func (w *PackWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// PackIDs extracts the distinct pack ids from a batch, first-seen order.
func PackIDs(batch []FileEvent) []string {
	seen := make(map[string]struct{}, len(batch))
	var ids []string
	for _, ev := range batch {
		if ev.PackID == "" {
			continue
		}
		if _, ok := seen[ev.PackID]; ok {
			continue
		}
		seen[ev.PackID] = struct{}{}
		ids = append(ids, ev.PackID)
	}
	return ids
}

// packIDFor derives the owning pack from the first path segment.
func packIDFor(rel string) string {
	rel = filepath.ToSlash(rel)
	if idx := strings.Index(rel, "/"); idx > 0 {
		return rel[:idx]
	}
	return ""
}

// isContentFile reports whether the path is something indexing cares
// about: markdown lore or a pack manifest.
func isContentFile(rel string) bool {
	name := filepath.Base(rel)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".md") || name == "manifest.yaml"
}

func shouldIgnore(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." {
			return true
		}
	}
	return false
}
