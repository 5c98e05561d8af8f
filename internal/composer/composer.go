// Package composer turns shell lifecycle events into rendered prompts.
//
// A Composer owns every registry the renderer needs: the theme store, the segment
// store, the shared cache, the async worker and the parsed-template cache. Events
// mark the prompt dirty; the next request for a slot re-renders it. Async data that
// arrives after a prompt was drawn is announced on Updates so the host can redraw.
package composer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lumen/internal/async"
	"lumen/internal/cache"
	"lumen/internal/logger"
	"lumen/internal/segment"
	"lumen/internal/shellintegration"
	"lumen/internal/template"
	"lumen/internal/testutils"
	"lumen/internal/theme"
	"lumen/internal/vcs"
	"lumen/pkg/prompttypes"

	"github.com/charmbracelet/log"
)

// DefaultTheme is activated when no theme is configured.
const DefaultTheme = "default"

// Options configures a Composer.
type Options struct {
	// Theme is the theme activated at start. Empty means DefaultTheme.
	Theme string
	// ThemeDirs are searched for user themes after the builtin ones.
	ThemeDirs   []string
	WatchThemes bool
	WatchVCS    bool

	AsyncTimeout time.Duration
	QueueSize    int
	MaxOutput    int

	Segments segment.Options
	TestMode bool

	// Themes and SegmentStore replace the default registries when set.
	Themes       *theme.Store
	SegmentStore *segment.Store
}

type transientRecord struct {
	primary string
	command string
	at      time.Time
	ctx     *prompttypes.PromptContext
}

// Composer coordinates stores, cache, worker and renderer for one shell session.
type Composer struct {
	session string
	env     Environment
	now     func() time.Time

	themes    *theme.Store
	segments  *segment.Store
	cache     *cache.Cache
	worker    *async.Worker
	templates *template.Cache
	renderer  *template.Renderer
	tracker   *shellintegration.Tracker

	themeWatcher *theme.Watcher
	repoWatcher  *vcs.Watcher
	log          *log.Logger

	mu        sync.Mutex
	dirty     bool
	renders   map[prompttypes.PromptSlot]string
	transient *transientRecord
	latest    map[string]uint64
	requests  map[uint64]*prompttypes.AsyncRequest
	closed    bool
	// idle is closed while no request is outstanding.
	idle chan struct{}

	updates chan struct{}
}

// New creates a Composer, loads themes, registers the builtin segments and starts
// the async worker.
func New(opts Options, env Environment) (*Composer, error) {
	c := &Composer{
		session:  testutils.GenerateUUID(opts.TestMode),
		env:      env,
		cache:    cache.New(),
		renders:  make(map[prompttypes.PromptSlot]string),
		latest:   make(map[string]uint64),
		requests: make(map[uint64]*prompttypes.AsyncRequest),
		updates:  make(chan struct{}, 1),
		idle:     make(chan struct{}),
		dirty:    true,
		log:      logger.NewStyledLogger("composer"),
	}
	close(c.idle)
	testMode := opts.TestMode
	c.now = func() time.Time { return testutils.CurrentTime(testMode) }

	c.themes = opts.Themes
	if c.themes == nil {
		c.themes = theme.NewStore()
		theme.Bootstrap(c.themes, opts.ThemeDirs)
	}

	c.segments = opts.SegmentStore
	if c.segments == nil {
		c.segments = segment.NewStore()
		if err := segment.RegisterBuiltins(c.segments, opts.Segments); err != nil {
			return nil, fmt.Errorf("failed to register builtin segments: %w", err)
		}
	}
	for _, seg := range c.segments.All() {
		if user, ok := seg.(segment.CacheUser); ok {
			user.UseCache(c.cache)
		}
	}

	maxOutput := opts.MaxOutput
	if maxOutput <= 0 {
		maxOutput = template.DefaultMaxOutput
	}
	c.templates = template.NewCache(template.DefaultCacheSize)
	c.renderer = template.NewRenderer(c.templates, maxOutput)

	c.tracker = shellintegration.NewTracker(env.Directory)
	c.tracker.SetClock(c.now)

	c.themes.Subscribe(c.themeChanged)
	name := opts.Theme
	if name == "" {
		name = DefaultTheme
	}
	if err := c.themes.SetActive(name); err != nil {
		c.segments.Close()
		return nil, fmt.Errorf("failed to activate theme: %w", err)
	}

	c.worker = async.NewWorker(opts.QueueSize, c.complete)
	if opts.AsyncTimeout > 0 {
		c.worker.SetDefaultTimeout(opts.AsyncTimeout)
	}
	c.worker.Start()

	if opts.WatchVCS {
		w, err := vcs.NewWatcher(c.RepositoryChanged)
		if err != nil {
			c.log.Warn("Repository watching disabled", "error", err)
		} else {
			c.repoWatcher = w
		}
	}
	if opts.WatchThemes && len(opts.ThemeDirs) > 0 {
		w, err := theme.NewWatcher(c.themes, opts.ThemeDirs)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			c.log.Warn("Theme hot reload disabled", "error", err)
		} else {
			w.OnReload(func(names []string) {
				c.log.Info("Themes reloaded", "themes", names)
			})
			c.themeWatcher = w
		}
	}

	c.log.Debug("Composer started", "session", c.session, "theme", name, "segments", c.segments.Len())
	return c, nil
}

// Session returns the session id.
func (c *Composer) Session() string {
	return c.session
}

// Themes returns the theme store.
func (c *Composer) Themes() *theme.Store {
	return c.themes
}

// Segments returns the segment store.
func (c *Composer) Segments() *segment.Store {
	return c.segments
}

// Cache returns the shared cache.
func (c *Composer) Cache() *cache.Cache {
	return c.cache
}

// State returns the shell state folded from the events seen so far.
func (c *Composer) State() shellintegration.ShellState {
	return c.tracker.State()
}

// Updates delivers a signal whenever async data changed the prompt. Signals coalesce.
func (c *Composer) Updates() <-chan struct{} {
	return c.updates
}

// Handle dispatches ev. For EventAboutToShowPrompt the rendered slot is returned.
func (c *Composer) Handle(ev prompttypes.Event) (string, error) {
	logger.EventReceived(ev.Kind.String(), "directory", ev.Directory, "command", ev.Command, "exit", ev.ExitCode)

	switch ev.Kind {
	case prompttypes.EventDirectoryChanged:
		c.DirectoryChanged(ev.Directory)
	case prompttypes.EventAboutToShowPrompt:
		slot := ev.Slot
		if slot == "" {
			slot = prompttypes.SlotPrimary
		}
		return c.AboutToShowPrompt(slot), nil
	case prompttypes.EventAboutToExecuteCommand:
		c.AboutToExecuteCommand(ev.Command)
	case prompttypes.EventCommandFinished:
		c.CommandFinished(ev.ExitCode)
	case prompttypes.EventThemeChanged:
		return "", c.SetTheme(ev.Theme)
	case prompttypes.EventKeymapChanged:
		c.KeymapChanged(ev.Keymap)
	case prompttypes.EventRepositoryChanged:
		c.RepositoryChanged(ev.Directory)
	default:
		return "", prompttypes.NewError(prompttypes.KindInvalidParameter, "handle", ev.Kind.String(), errors.New("unknown event"))
	}
	return "", nil
}

// DirectoryChanged invalidates directory and VCS data and requests fresh async data
// for the new directory.
func (c *Composer) DirectoryChanged(dir string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.tracker.Apply(prompttypes.Event{Kind: prompttypes.EventDirectoryChanged, Directory: dir})

	for _, tag := range []string{segment.TagVCS, segment.TagDirectory} {
		logger.CacheInvalidation(tag, c.cache.InvalidateByTag(tag))
	}
	for _, seg := range c.segments.Async() {
		if seg.Capabilities().Has(prompttypes.CapDirectoryDependent) {
			seg.InvalidateCache()
		}
	}
	c.refreshLocked(dir)
	c.markDirtyLocked()
	c.mu.Unlock()

	if c.repoWatcher != nil {
		c.repoWatcher.Retarget(dir)
	}
}

// RepositoryChanged refreshes VCS data after the repository metadata changed on disk.
// Segments keep showing their previous data until the new data arrives.
func (c *Composer) RepositoryChanged(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	logger.CacheInvalidation(segment.TagVCS, c.cache.InvalidateByTag(segment.TagVCS))
	c.refreshLocked(c.tracker.State().Directory)
	c.markDirtyLocked()
	c.log.Debug("Repository changed", "root", root)
}

// refreshLocked submits one request per async segment relevant to dir.
// Every async segment gets a new latest id, so older responses become stale
// even when the segment declines the request.
func (c *Composer) refreshLocked(dir string) {
	for _, seg := range c.segments.Async() {
		req := &prompttypes.AsyncRequest{
			ID:        c.worker.NextID(),
			Segment:   seg.Name(),
			Directory: dir,
		}
		c.latest[seg.Name()] = req.ID
		if !seg.RequestAsyncData(req) {
			continue
		}
		if _, err := c.worker.Submit(req); err != nil {
			c.log.Debug("Async request not queued", "segment", seg.Name(), "id", req.ID, "error", err)
			continue
		}
		if len(c.requests) == 0 {
			c.idle = make(chan struct{})
		}
		c.requests[req.ID] = req
	}
}

// settleLocked signals waiters once the last outstanding request is gone.
func (c *Composer) settleLocked() {
	if len(c.requests) > 0 {
		return
	}
	select {
	case <-c.idle:
	default:
		close(c.idle)
	}
}

// complete is the worker's completion callback.
func (c *Composer) complete(resp *prompttypes.AsyncResponse) {
	c.mu.Lock()

	req := c.requests[resp.ID]
	delete(c.requests, resp.ID)
	c.settleLocked()

	if c.closed || c.latest[resp.Segment] != resp.ID {
		c.mu.Unlock()
		c.log.Debug("Discarding stale response", "segment", resp.Segment, "id", resp.ID)
		return
	}

	seg, ok := c.segments.Find(resp.Segment)
	asyncSeg, isAsync := seg.(prompttypes.AsyncSegment)
	if !ok || !isAsync {
		c.mu.Unlock()
		return
	}
	asyncSeg.OnAsyncDataReady(resp)

	if resp.OK() && req != nil && req.CacheKey != "" {
		c.cache.Set(req.CacheKey, resp.Payload, req.Tags...)
	}
	if resp.Err != nil {
		c.log.Debug("Async request failed", "segment", resp.Segment, "id", resp.ID, "error", resp.Err)
	}
	c.markDirtyLocked()
	c.mu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// AboutToShowPrompt returns the rendered slot, re-rendering only when something changed.
func (c *Composer) AboutToShowPrompt(slot prompttypes.PromptSlot) string {
	if slot == prompttypes.SlotTransient {
		return c.Transient()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracker.Apply(prompttypes.Event{Kind: prompttypes.EventAboutToShowPrompt, Slot: slot})
	if c.dirty {
		clear(c.renders)
		c.dirty = false
	}
	if out, ok := c.renders[slot]; ok {
		return out
	}

	ctx := c.contextLocked()
	if ctx.Theme == nil {
		return ""
	}
	out := c.renderer.RenderString(slotFormat(ctx.Theme, slot), ctx, ctx.Theme, c.segments)
	c.renders[slot] = out
	return out
}

// slotFormat returns the layout rendered for slot. The add_newline line break is
// part of the template so it counts against the output bound.
func slotFormat(t *prompttypes.Theme, slot prompttypes.PromptSlot) string {
	format := t.Layout.Format(slot)
	if slot == prompttypes.SlotPrimary && isTrue(t.Layout.AddNewline) {
		format = "\n" + format
	}
	return format
}

// Render renders slot against the current state without touching the cached renders.
func (c *Composer) Render(slot prompttypes.PromptSlot) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := c.contextLocked()
	if ctx.Theme == nil {
		return ""
	}
	return c.renderer.RenderString(slotFormat(ctx.Theme, slot), ctx, ctx.Theme, c.segments)
}

// AboutToExecuteCommand records the prompt the command was typed at.
func (c *Composer) AboutToExecuteCommand(command string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := &transientRecord{
		primary: c.renders[prompttypes.SlotPrimary],
		command: command,
		at:      c.now(),
		ctx:     c.contextLocked(),
	}
	c.transient = record
	c.tracker.Apply(prompttypes.Event{Kind: prompttypes.EventAboutToExecuteCommand, Command: command})
}

// Transient renders the theme's transient format for the prompt of the running
// command. Without a transient format the recorded primary prompt is returned.
func (c *Composer) Transient() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.transient
	if record == nil {
		return ""
	}
	t := record.ctx.Theme
	if t == nil || t.Layout.Transient == "" {
		return record.primary
	}
	return c.renderer.RenderString(t.Layout.Transient, record.ctx, t, c.segments)
}

// CommandFinished records the exit code and duration of the last command.
func (c *Composer) CommandFinished(exitCode int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracker.Apply(prompttypes.Event{Kind: prompttypes.EventCommandFinished, ExitCode: exitCode})
	c.markDirtyLocked()
}

// KeymapChanged records the line editor keymap.
func (c *Composer) KeymapChanged(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tracker.Apply(prompttypes.Event{Kind: prompttypes.EventKeymapChanged, Keymap: name})
	c.markDirtyLocked()
}

// SetTheme activates the named theme.
func (c *Composer) SetTheme(name string) error {
	return c.themes.SetActive(name)
}

// themeChanged runs after every active theme change, including hot reloads.
func (c *Composer) themeChanged(previous, current *prompttypes.Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Clear()
	c.templates.Unpin()
	if current != nil {
		for _, slot := range []prompttypes.PromptSlot{
			prompttypes.SlotPrimary, prompttypes.SlotRight, prompttypes.SlotContinuation, prompttypes.SlotTransient,
		} {
			if format := slotFormat(current, slot); format != "" {
				c.templates.SetPinned(format, true)
			}
		}
	}
	c.markDirtyLocked()

	from := ""
	if previous != nil {
		from = previous.Name
	}
	to := ""
	if current != nil {
		to = current.Name
	}
	c.log.Debug("Theme changed", "from", from, "to", to)
}

func (c *Composer) markDirtyLocked() {
	c.dirty = true
}

// contextLocked builds the render context from the environment and the shell state.
func (c *Composer) contextLocked() *prompttypes.PromptContext {
	state := c.tracker.State()
	active, _ := c.themes.Active()
	return &prompttypes.PromptContext{
		ExitCode:     state.LastExitCode,
		LastCommand:  state.LastCommand,
		LastDuration: state.LastDuration,
		Directory:    state.Directory,
		HomeDir:      c.env.HomeDir,
		User:         c.env.User,
		Host:         c.env.Host,
		Shell:        c.env.Shell,
		Keymap:       state.Keymap,
		Terminal:     c.env.Terminal,
		Theme:        active,
		Now:          c.now(),
	}
}

// Pending reports how many async requests have not completed yet.
func (c *Composer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Wait blocks until every submitted async request has completed or ctx is done.
func (c *Composer) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker and the watchers and cleans up the segments.
func (c *Composer) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var errs []error
	if err := c.worker.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop worker: %w", err))
	}

	// Requests discarded from the queue never complete.
	c.mu.Lock()
	clear(c.requests)
	c.settleLocked()
	c.mu.Unlock()

	if c.repoWatcher != nil {
		if err := c.repoWatcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop repository watcher: %w", err))
		}
	}
	if c.themeWatcher != nil {
		if err := c.themeWatcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop theme watcher: %w", err))
		}
	}
	c.segments.Close()
	c.log.Debug("Composer closed", "session", c.session)
	return errors.Join(errs...)
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
