package theme

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"lumen/internal/logger"
	"lumen/pkg/prompttypes"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file events to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads theme files into a Store when they change on disk.
type Watcher struct {
	store    *Store
	dirs     []string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *log.Logger

	mu      sync.Mutex
	pending map[string]bool
	// onReload is called after each batch with the names of reloaded themes.
	onReload func([]string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the given theme directories.
func NewWatcher(store *Store, dirs []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:    store,
		dirs:     dirs,
		watcher:  fsw,
		debounce: DefaultDebounce,
		log:      logger.NewStyledLogger("themes"),
		pending:  make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// SetDebounce changes the settle interval. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// OnReload sets a callback receiving the names of the themes reloaded in a batch.
func (w *Watcher) OnReload(fn func([]string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Start watches every existing directory and begins processing events.
func (w *Watcher) Start() error {
	watched := 0
	for _, dir := range w.dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			w.log.Debug("Skipping theme directory", "dir", dir)
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watched++
	}
	w.log.Debug("Watching theme directories", "count", watched)

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop stops the watcher and waits for its goroutines.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
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
			w.log.Warn("Theme watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if FormatOf(event.Name) == "" {
		return
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		w.mu.Lock()
		w.pending[event.Name] = true
		w.mu.Unlock()
		return
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		// Removing a theme could orphan its children, so the registered definition stays.
		w.log.Debug("Theme file removed, keeping registered definition", "file", event.Name)
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush reloads every pending file.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	files := make([]string, 0, len(w.pending))
	for file := range w.pending {
		files = append(files, file)
	}
	w.pending = make(map[string]bool)
	callback := w.onReload
	w.mu.Unlock()

	sort.Strings(files)
	var reloaded []string
	for _, file := range files {
		name, err := w.reload(file)
		if err != nil {
			w.log.Warn("Theme reload failed", "file", filepath.Base(file), "error", err)
			continue
		}
		reloaded = append(reloaded, name)
	}

	if len(reloaded) > 0 {
		w.log.Info("Themes reloaded", "theme", reloaded)
		if callback != nil {
			callback(reloaded)
		}
	}
}

func (w *Watcher) reload(file string) (string, error) {
	t, err := LoadFile(file, prompttypes.SourceUser)
	if err != nil {
		return "", err
	}
	if err := w.store.Replace(t); err != nil {
		return "", err
	}
	return t.Name, nil
}
