package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lumen/internal/segment"
	"lumen/internal/testutils"
	"lumen/internal/theme"
	"lumen/internal/vcs"
	"lumen/pkg/prompttypes"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv() Environment {
	return Environment{
		HomeDir:   "/home/tester",
		User:      "tester",
		Host:      "box",
		Shell:     "zsh",
		Directory: "/start",
		Terminal:  prompttypes.TerminalCaps{ColorProfile: termenv.Ascii, DarkBackground: true, Width: 80},
	}
}

func defaultLayout() prompttypes.Layout {
	return prompttypes.Layout{
		Primary:   "${where}|${repo}|",
		Right:     "r:${where}",
		Transient: "$ ",
	}
}

func newTestComposer(t *testing.T, layout prompttypes.Layout, segs ...prompttypes.Segment) *Composer {
	t.Helper()

	themes := theme.NewStore()
	th := testutils.Theme("test")
	th.Layout = layout
	require.NoError(t, themes.Register(th))

	other := testutils.Theme("other")
	other.Layout = prompttypes.Layout{Primary: "other ${where}"}
	require.NoError(t, themes.Register(other))

	store := segment.NewStore()
	for _, seg := range segs {
		require.NoError(t, store.Register(seg))
	}

	c, err := New(Options{Theme: "test", Themes: themes, SegmentStore: store, TestMode: true}, testEnv())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close(context.Background())
	})
	return c
}

func waitIdle(t *testing.T, c *Composer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func isDirty(c *Composer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func TestComposer_DirectoryChangedEndToEnd(t *testing.T) {
	where := testutils.NewFakeSegment("where", "here")
	repo := testutils.NewFakeAsyncSegment("repo")
	c := newTestComposer(t, defaultLayout(), where, repo)

	assert.Equal(t, "here||", c.AboutToShowPrompt(prompttypes.SlotPrimary))
	assert.False(t, isDirty(c))

	c.DirectoryChanged("/work/project")
	assert.True(t, isDirty(c))

	requests := repo.Requests()
	require.Len(t, requests, 1, "exactly one request for the new directory")
	assert.Equal(t, "/work/project", requests[0].Directory)
	assert.Equal(t, []string{segment.TagVCS}, requests[0].Tags)

	waitIdle(t, c)
	assert.True(t, isDirty(c), "dirty until the next pre-prompt")

	select {
	case <-c.Updates():
	case <-time.After(5 * time.Second):
		t.Fatal("no update signal after async completion")
	}

	assert.Equal(t, "here|/work/project|", c.AboutToShowPrompt(prompttypes.SlotPrimary))
	assert.False(t, isDirty(c))
	assert.Equal(t, "r:here", c.AboutToShowPrompt(prompttypes.SlotRight))

	value, ok := c.Cache().Get("repo:/work/project")
	require.True(t, ok)
	assert.Equal(t, "/work/project", value)

	entry, ok := c.Cache().Entry("repo:/work/project")
	require.True(t, ok)
	assert.True(t, entry.HasTag("vcs"))

	assert.Equal(t, "/work/project", c.State().Directory)
	assert.Equal(t, 1, repo.Invalidations())
	assert.Equal(t, []uint64{repo.LatestID()}, repo.Applied())
}

func TestComposer_DirectoryChangedInvalidatesTags(t *testing.T) {
	repo := testutils.NewFakeAsyncSegment("repo")
	repo.Relevant = func(string) bool { return false }
	c := newTestComposer(t, defaultLayout(), testutils.NewFakeSegment("where", "here"), repo)

	c.Cache().Set("vcs:/old", "main", segment.TagVCS)
	c.Cache().Set("dir:/old", "info", segment.TagDirectory)
	c.Cache().Set("other", 1, "unrelated")

	c.DirectoryChanged("/elsewhere")

	assert.Equal(t, []string{"other"}, c.Cache().Keys())
	assert.Empty(t, repo.Requests())
	assert.Equal(t, 0, c.Pending())
	assert.NotZero(t, repo.LatestID())
}

func TestComposer_StaleResponseIsNoOp(t *testing.T) {
	release := make(chan struct{})
	repo := testutils.NewFakeAsyncSegment("repo")
	repo.Fetch = func(ctx context.Context, dir string) (any, error) {
		if dir == "/slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return "data " + dir, nil
	}
	c := newTestComposer(t, defaultLayout(), testutils.NewFakeSegment("where", "here"), repo)

	c.DirectoryChanged("/slow")
	c.DirectoryChanged("/fast")
	close(release)
	waitIdle(t, c)

	requests := repo.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, []uint64{requests[1].ID}, repo.Applied())
	assert.Equal(t, []string{"repo:/fast"}, c.Cache().Keys())
	assert.Equal(t, "here|data /fast|", c.AboutToShowPrompt(prompttypes.SlotPrimary))

	before := c.Cache().Keys()
	value, _ := c.Cache().Get("repo:/fast")

	c.complete(&prompttypes.AsyncResponse{ID: requests[0].ID, Segment: "repo", Directory: "/slow", Payload: "late"})

	assert.Equal(t, before, c.Cache().Keys())
	after, _ := c.Cache().Get("repo:/fast")
	assert.Equal(t, value, after)
	assert.Equal(t, []uint64{requests[1].ID}, repo.Applied())
	assert.False(t, c.dirty)
	assert.Equal(t, "here|data /fast|", c.AboutToShowPrompt(prompttypes.SlotPrimary))
}

func TestComposer_FailedFetchClearsSegment(t *testing.T) {
	fail := false
	repo := testutils.NewFakeAsyncSegment("repo")
	repo.Fetch = func(_ context.Context, dir string) (any, error) {
		if fail {
			return nil, errors.New("git exploded")
		}
		return dir, nil
	}
	c := newTestComposer(t, defaultLayout(), testutils.NewFakeSegment("where", "here"), repo)

	c.DirectoryChanged("/a")
	waitIdle(t, c)
	assert.Equal(t, "here|/a|", c.AboutToShowPrompt(prompttypes.SlotPrimary))

	fail = true
	c.RepositoryChanged("/a")
	waitIdle(t, c)
	assert.Equal(t, "here||", c.AboutToShowPrompt(prompttypes.SlotPrimary))
	assert.Empty(t, c.Cache().Keys())
}

func TestComposer_RendersOnlyWhenDirty(t *testing.T) {
	where := testutils.NewFakeSegment("where", "here")
	c := newTestComposer(t, defaultLayout(), where)

	first := c.AboutToShowPrompt(prompttypes.SlotPrimary)
	second := c.AboutToShowPrompt(prompttypes.SlotPrimary)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, where.RenderCalls())

	c.AboutToShowPrompt(prompttypes.SlotRight)
	assert.Equal(t, 2, where.RenderCalls())

	c.CommandFinished(1)
	c.AboutToShowPrompt(prompttypes.SlotPrimary)
	assert.Equal(t, 3, where.RenderCalls())
	assert.Equal(t, 1, c.State().LastExitCode)

	c.KeymapChanged("vicmd")
	c.AboutToShowPrompt(prompttypes.SlotPrimary)
	assert.Equal(t, 4, where.RenderCalls())
	assert.Equal(t, "vicmd", c.State().Keymap)
}

func TestComposer_ThemeChangeClearsCache(t *testing.T) {
	c := newTestComposer(t, defaultLayout(), testutils.NewFakeSegment("where", "here"))

	assert.Equal(t, "here||", c.AboutToShowPrompt(prompttypes.SlotPrimary))
	c.Cache().Set("vcs:/x", "main", segment.TagVCS)
	c.Cache().Set("plain", 1)

	require.NoError(t, c.SetTheme("other"))
	assert.Zero(t, c.Cache().Len())
	assert.Equal(t, "other here", c.AboutToShowPrompt(prompttypes.SlotPrimary))

	stats := c.renderer.Cache().GetStats()
	assert.Equal(t, 1, stats.PinnedCount)

	err := c.SetTheme("missing")
	assert.True(t, errors.Is(err, prompttypes.ErrThemeNotFound))
	active, _ := c.Themes().Active()
	assert.Equal(t, "other", active.Name)
}

func TestComposer_ThemeReplaceMarksDirty(t *testing.T) {
	c := newTestComposer(t, defaultLayout(), testutils.NewFakeSegment("where", "here"))
	assert.Equal(t, "here||", c.AboutToShowPrompt(prompttypes.SlotPrimary))

	updated := testutils.Theme("test")
	updated.Layout = prompttypes.Layout{Primary: "[${where}]"}
	require.NoError(t, c.Themes().Replace(updated))

	assert.Equal(t, "[here]", c.AboutToShowPrompt(prompttypes.SlotPrimary))
}

func TestComposer_Transient(t *testing.T) {
	tests := []struct {
		name      string
		transient string
		expected  string
	}{
		{name: "transient format", transient: "${where}> ", expected: "here> "},
		{name: "falls back to primary", transient: "", expected: "here||"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := defaultLayout()
			layout.Transient = tt.transient
			c := newTestComposer(t, layout, testutils.NewFakeSegment("where", "here"))

			assert.Empty(t, c.Transient())
			c.AboutToShowPrompt(prompttypes.SlotPrimary)
			c.AboutToExecuteCommand("make test")

			assert.Equal(t, tt.expected, c.Transient())
			assert.Equal(t, tt.expected, c.AboutToShowPrompt(prompttypes.SlotTransient))
			assert.True(t, c.State().IsRunning())
			assert.Equal(t, "make test", c.State().LastCommand)
		})
	}
}

func TestComposer_AddNewline(t *testing.T) {
	layout := defaultLayout()
	add := true
	layout.AddNewline = &add
	c := newTestComposer(t, layout, testutils.NewFakeSegment("where", "here"))

	assert.Equal(t, "\nhere||", c.AboutToShowPrompt(prompttypes.SlotPrimary))
	assert.Equal(t, "r:here", c.AboutToShowPrompt(prompttypes.SlotRight))
	assert.Equal(t, "\nhere||", c.Render(prompttypes.SlotPrimary))
}

func TestComposer_AddNewlineWithinOutputBound(t *testing.T) {
	themes := theme.NewStore()
	th := testutils.Theme("test")
	add := true
	th.Layout = prompttypes.Layout{Primary: "abcdefgh", AddNewline: &add}
	require.NoError(t, themes.Register(th))

	c, err := New(Options{Theme: "test", Themes: themes, SegmentStore: segment.NewStore(), MaxOutput: 4, TestMode: true}, testEnv())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close(context.Background())
	})

	out := c.AboutToShowPrompt(prompttypes.SlotPrimary)
	assert.Equal(t, "\nabc", out)
	assert.LessOrEqual(t, len(out), 4)
}

func TestComposer_Handle(t *testing.T) {
	c := newTestComposer(t, defaultLayout(), testutils.NewFakeSegment("where", "here"))

	out, err := c.Handle(prompttypes.Event{Kind: prompttypes.EventAboutToShowPrompt})
	require.NoError(t, err)
	assert.Equal(t, "here||", out)

	_, err = c.Handle(prompttypes.Event{Kind: prompttypes.EventAboutToExecuteCommand, Command: "ls"})
	require.NoError(t, err)
	_, err = c.Handle(prompttypes.Event{Kind: prompttypes.EventCommandFinished, ExitCode: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, c.State().LastExitCode)

	_, err = c.Handle(prompttypes.Event{Kind: prompttypes.EventDirectoryChanged, Directory: "/tmp"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp", c.State().Directory)

	_, err = c.Handle(prompttypes.Event{Kind: prompttypes.EventThemeChanged, Theme: "other"})
	require.NoError(t, err)
	out, err = c.Handle(prompttypes.Event{Kind: prompttypes.EventAboutToShowPrompt, Slot: prompttypes.SlotPrimary})
	require.NoError(t, err)
	assert.Equal(t, "other here", out)

	_, err = c.Handle(prompttypes.Event{Kind: prompttypes.EventThemeChanged, Theme: "nope"})
	assert.True(t, errors.Is(err, prompttypes.ErrThemeNotFound))

	_, err = c.Handle(prompttypes.Event{Kind: prompttypes.EventKind(99)})
	assert.True(t, errors.Is(err, prompttypes.ErrInvalidParameter))
}

func TestComposer_Close(t *testing.T) {
	var cleaned []string
	where := testutils.NewFakeSegment("where", "here")
	where.OnCleanup = func(name string) { cleaned = append(cleaned, name) }
	repo := testutils.NewFakeAsyncSegment("repo")
	c := newTestComposer(t, defaultLayout(), where, repo)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"where"}, cleaned)

	c.DirectoryChanged("/after")
	assert.Empty(t, repo.Requests())
}

func TestNew_UnknownTheme(t *testing.T) {
	themes := theme.NewStore()
	require.NoError(t, themes.Register(testutils.Theme("test")))

	_, err := New(Options{Theme: "missing", Themes: themes, SegmentStore: segment.NewStore(), TestMode: true}, testEnv())
	assert.True(t, errors.Is(err, prompttypes.ErrThemeNotFound))
}

func TestNew_BuiltinThemesAndSegments(t *testing.T) {
	c, err := New(Options{TestMode: true}, testEnv())
	require.NoError(t, err)
	defer c.Close(context.Background())

	active, ok := c.Themes().Active()
	require.True(t, ok)
	assert.Equal(t, DefaultTheme, active.Name)

	_, ok = c.Segments().Find("directory")
	assert.True(t, ok)
	assert.NotEmpty(t, c.Session())
	assert.NotEmpty(t, c.AboutToShowPrompt(prompttypes.SlotPrimary))
}

type stubStatus struct {
	mu    sync.Mutex
	dirs  []string
	state *vcs.Status
}

func (s *stubStatus) Status(_ context.Context, dir string) (*vcs.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs = append(s.dirs, dir)
	return s.state, nil
}

func (s *stubStatus) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dirs...)
}

func TestComposer_DirectoryChangedWithGit(t *testing.T) {
	repo := testutils.MakeRepo(t)
	fetcher := &stubStatus{state: &vcs.Status{Root: repo, Branch: "main"}}
	c := newTestComposer(t, prompttypes.Layout{Primary: "${where} ${git.branch}"},
		testutils.NewFakeSegment("where", "here"), segment.NewGit(fetcher, time.Second))

	assert.Equal(t, "here ", c.AboutToShowPrompt(prompttypes.SlotPrimary))

	c.DirectoryChanged(repo)
	assert.True(t, isDirty(c))
	waitIdle(t, c)

	assert.Equal(t, []string{repo}, fetcher.calls(), "one fetch for the repository directory")
	assert.True(t, isDirty(c))

	assert.Equal(t, "here main", c.AboutToShowPrompt(prompttypes.SlotPrimary))
	assert.False(t, isDirty(c))

	value, ok := c.Cache().Get(segment.CacheKey(repo))
	require.True(t, ok)
	assert.Equal(t, "main", value.(*vcs.Status).Branch)

	c.DirectoryChanged(t.TempDir())
	waitIdle(t, c)
	assert.Len(t, fetcher.calls(), 1, "no fetch outside a repository")
	assert.Equal(t, "here ", c.AboutToShowPrompt(prompttypes.SlotPrimary))
}

func TestComposer_WaitReturnsAfterClose(t *testing.T) {
	started := make(chan struct{}, 1)
	slow := testutils.NewFakeAsyncSegment("slow")
	slow.Fetch = func(ctx context.Context, _ string) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	queued := testutils.NewFakeAsyncSegment("queued")
	c := newTestComposer(t, defaultLayout(), slow, queued)

	c.DirectoryChanged("/work")
	<-started
	assert.Equal(t, 2, c.Pending())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = c.Close(ctx)
	assert.Equal(t, 0, c.Pending())

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	assert.NoError(t, c.Wait(waitCtx))
}
