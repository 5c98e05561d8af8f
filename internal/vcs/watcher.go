package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"lumen/internal/logger"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for git to finish writing before notifying.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reports changes to the git metadata of one repository at a time:
// HEAD, the index and local refs. Retarget switches repositories.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(root string)
	log      *log.Logger

	mu      sync.Mutex
	root    string
	watched []string
	pending bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a repository watcher. onChange is called with the repository
// root after each settled burst of changes.
func NewWatcher(onChange func(root string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fsw,
		debounce: DefaultDebounce,
		onChange: onChange,
		log:      logger.NewStyledLogger("vcs"),
		ctx:      ctx,
		cancel:   cancel,
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return w, nil
}

// SetDebounce changes the settle interval for subsequent bursts.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d > 0 {
		w.debounce = d
	}
}

// Root returns the repository currently watched, or "".
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Retarget watches the repository containing dir, dropping the previous one.
// A directory outside any repository leaves nothing watched. It reports whether
// a repository is being watched afterwards.
func (w *Watcher) Retarget(dir string) bool {
	root, ok := FindRoot(dir)

	w.mu.Lock()
	defer w.mu.Unlock()

	if ok && root == w.root {
		return true
	}

	for _, path := range w.watched {
		_ = w.watcher.Remove(path)
	}
	w.watched = nil
	w.root = ""
	w.pending = false

	if !ok {
		return false
	}

	gitDir, err := GitDir(root)
	if err != nil {
		w.log.Debug("Cannot locate git directory", "root", root, "error", err)
		return false
	}

	for _, path := range []string{gitDir, filepath.Join(gitDir, "refs", "heads")} {
		if err := w.watcher.Add(path); err != nil {
			w.log.Debug("Cannot watch git path", "path", path, "error", err)
			continue
		}
		w.watched = append(w.watched, path)
	}
	if len(w.watched) == 0 {
		return false
	}

	w.root = root
	w.log.Debug("Watching repository", "root", root)
	return true
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
			if relevant(event.Name) {
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Repository watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	w.mu.Lock()
	interval := w.debounce
	w.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			if w.debounce != interval {
				interval = w.debounce
				ticker.Reset(interval)
			}
			fire := w.pending && w.root != ""
			root := w.root
			w.pending = false
			w.mu.Unlock()

			if fire && w.onChange != nil {
				w.onChange(root)
			}
		}
	}
}

// relevant filters out lock files and other transient git writes.
func relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".lock") {
		return false
	}
	switch base {
	case "HEAD", "index", "ORIG_HEAD", "MERGE_HEAD", "FETCH_HEAD", "packed-refs":
		return true
	}
	// Anything under refs/heads is a branch tip.
	return strings.Contains(filepath.ToSlash(path), "/refs/heads/")
}
