// Package watch records edits made to note files by other programs.
//
// The watcher listens to the notes directory with fsnotify. Once a *.md file
// has been quiet for the debounce period, its content is saved through the
// store, which records one revision per settled edit.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	apperr "github.com/maruel/mdnotes/internal/errors"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Store is the part of notes.Store used by the watcher.
type Store interface {
	SaveNote(ctx context.Context, id, content string) error
	NoteAt(ctx context.Context, id, revision string) (string, error)
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last event before saving.
	Debounce time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// OnSave is called after each recorded revision.
	OnSave func(id string)
}

// Watcher saves note files changed outside the store.
type Watcher struct {
	store   Store
	dir     string
	opts    Options
	started chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
	last    map[string]string
	pending chan string
}

// New returns a watcher on dir, the notes directory of an OS backed store.
func New(store Store, dir string, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		store:   store,
		dir:     dir,
		opts:    opts,
		started: make(chan struct{}),
		timers:  map[string]*time.Timer{},
		last:    map[string]string{},
		pending: make(chan string, 16),
	}
}

// Started is closed once the directory is being watched.
func (w *Watcher) Started() <-chan struct{} {
	return w.started
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.opts.Logger
	if err := os.MkdirAll(w.dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create %s: %w", w.dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	defer w.stopTimers()
	log.InfoContext(ctx, "watch: started", "dir", w.dir, "debounce", w.opts.Debounce)
	close(w.started)

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "watch: stopped")
			return nil
		case id := <-w.pending:
			w.flush(ctx, id)
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WarnContext(ctx, "watch: error", "err", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	id, ok := strings.CutSuffix(name, ".md")
	if !ok || id == "" || strings.HasPrefix(name, ".") {
		return
	}
	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.schedule(ctx, id)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancel(id)
		w.opts.Logger.InfoContext(ctx, "watch: note removed outside the store, not recorded", "id", id)
	}
}

// schedule (re)starts the debounce timer of id.
func (w *Watcher) schedule(ctx context.Context, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[id]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.timers[id] = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case w.pending <- id:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) cancel(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[id]; ok {
		t.Stop()
		delete(w.timers, id)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

// flush saves id unless its content is already recorded.
func (w *Watcher) flush(ctx context.Context, id string) {
	w.mu.Lock()
	delete(w.timers, id)
	w.mu.Unlock()

	log := w.opts.Logger
	data, err := os.ReadFile(filepath.Join(w.dir, id+".md"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.WarnContext(ctx, "watch: read failed", "id", id, "err", err)
		}
		return
	}
	content := string(data)
	if prev, ok := w.last[id]; ok && prev == content {
		return
	}
	// Skip writes made by the store itself, including from another process.
	committed, err := w.store.NoteAt(ctx, id, "HEAD")
	switch {
	case err == nil && committed == content:
		w.last[id] = content
		return
	case err != nil && !apperr.IsNotFound(err):
		log.WarnContext(ctx, "watch: cannot read committed content", "id", id, "err", err)
	}
	if err := w.store.SaveNote(ctx, id, content); err != nil {
		log.ErrorContext(ctx, "watch: save failed", "id", id, "err", err)
		return
	}
	w.last[id] = content
	log.InfoContext(ctx, "watch: recorded external edit", "id", id, "bytes", len(data))
	if w.opts.OnSave != nil {
		w.opts.OnSave(id)
	}
}
