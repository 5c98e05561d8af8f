package segment

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"lumen/internal/vcs"
	"lumen/pkg/prompttypes"
)

// TagVCS marks cache entries holding version control data.
const TagVCS = "vcs"

// DefaultGitTimeout bounds one git status call.
const DefaultGitTimeout = 2 * time.Second

// StatusFetcher reads the version control status of a directory.
type StatusFetcher interface {
	Status(ctx context.Context, dir string) (*vcs.Status, error)
}

// Git shows the branch and working tree state of the repository containing the
// working directory. Its data is fetched by the async worker; rendering only reads
// the last applied result or the cached status for the repository. The repository
// root is resolved once per request, never while rendering.
type Git struct {
	Base
	fetcher StatusFetcher
	timeout time.Duration

	mu       sync.Mutex
	cache    Cache
	latestID uint64
	fresh    bool
	status   *vcs.Status
	root     string

	// dir and dirRoot describe the directory of the latest request.
	dir     string
	dirRoot string
}

// NewGit creates the git segment.
func NewGit(fetcher StatusFetcher, timeout time.Duration) *Git {
	if fetcher == nil {
		fetcher = vcs.NewClient()
	}
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}
	return &Git{
		Base: NewBase("git", "Git branch and working tree status",
			prompttypes.CapAsyncData|prompttypes.CapCacheable|prompttypes.CapProperties|prompttypes.CapDirectoryDependent),
		fetcher: fetcher,
		timeout: timeout,
	}
}

// CacheKey returns the cache key of a repository's status.
func CacheKey(root string) string {
	return "vcs:" + root
}

// UseCache implements CacheUser.
func (g *Git) UseCache(c Cache) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache = c
}

// RequestAsyncData prepares a status request for the repository containing req.Directory.
// req.ID becomes the latest expected identifier even when the directory is outside any
// repository, so responses for the previous directory are dropped.
func (g *Git) RequestAsyncData(req *prompttypes.AsyncRequest) bool {
	root, ok := vcs.FindRoot(req.Directory)

	g.mu.Lock()
	g.latestID = req.ID
	g.dir = req.Directory
	g.dirRoot = root
	g.mu.Unlock()

	if !ok {
		return false
	}

	fetcher := g.fetcher
	req.Segment = g.Name()
	req.Timeout = g.timeout
	req.CacheKey = CacheKey(root)
	req.Tags = []string{TagVCS}
	req.Fetch = func(ctx context.Context, dir string) (any, error) {
		return fetcher.Status(ctx, dir)
	}
	return true
}

// OnAsyncDataReady applies the response matching the latest request.
func (g *Git) OnAsyncDataReady(resp *prompttypes.AsyncResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if resp.ID != g.latestID {
		return
	}
	status, ok := resp.Payload.(*vcs.Status)
	if !resp.OK() || !ok || status == nil {
		g.fresh = false
		g.status = nil
		g.root = ""
		return
	}
	g.status = status
	g.root = status.Root
	g.fresh = true
}

// InvalidateCache drops the applied status.
func (g *Git) InvalidateCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fresh = false
	g.status = nil
	g.root = ""
}

// HasFreshData reports whether a response has been applied since the last invalidation.
func (g *Git) HasFreshData() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fresh
}

// LatestID returns the identifier of the last request prepared by the segment.
func (g *Git) LatestID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latestID
}

// current returns the status for the repository of the last requested directory
// when ctx is at that directory: the applied response when it belongs to that
// repository, else the cached status.
func (g *Git) current(ctx *prompttypes.PromptContext) *vcs.Status {
	if ctx == nil || ctx.Directory == "" {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if ctx.Directory != g.dir || g.dirRoot == "" {
		return nil
	}
	root := g.dirRoot

	if g.fresh && g.status != nil && g.root == root {
		return g.status
	}
	if g.cache != nil {
		if value, ok := g.cache.Get(CacheKey(root)); ok {
			if status, ok := value.(*vcs.Status); ok {
				return status
			}
		}
	}
	return nil
}

// IsVisible reports whether status data is available for the working directory.
func (g *Git) IsVisible(ctx *prompttypes.PromptContext) bool {
	return g.current(ctx) != nil
}

// Render draws the branch followed by change indicators.
func (g *Git) Render(ctx *prompttypes.PromptContext, theme *prompttypes.Theme) prompttypes.SegmentOutput {
	status := g.current(ctx)
	if status == nil {
		return Empty()
	}
	s := stylerFor(ctx)

	role := "vcs_clean"
	if status.Dirty() {
		role = "vcs_dirty"
	}

	var b strings.Builder
	b.WriteString(s.WrapRole(theme, role, symbol(theme, "branch", "")+status.Ref()))

	var flags []string
	if status.Ahead > 0 {
		flags = append(flags, s.WrapRole(theme, "vcs_ahead_behind", symbol(theme, "ahead", "↑")+strconv.Itoa(status.Ahead)))
	}
	if status.Behind > 0 {
		flags = append(flags, s.WrapRole(theme, "vcs_ahead_behind", symbol(theme, "behind", "↓")+strconv.Itoa(status.Behind)))
	}
	if status.Conflicts > 0 {
		flags = append(flags, s.WrapRole(theme, "vcs_conflict", symbol(theme, "conflict", "!")))
	}
	if status.Staged > 0 {
		flags = append(flags, s.WrapRole(theme, "vcs_staged", symbol(theme, "staged", "+")))
	}
	if status.Unstaged > 0 {
		flags = append(flags, s.WrapRole(theme, "vcs_dirty", symbol(theme, "dirty", "*")))
	}
	if status.Untracked > 0 {
		flags = append(flags, s.WrapRole(theme, "vcs_untracked", symbol(theme, "untracked", "?")))
	}
	if len(flags) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(flags, ""))
	}
	return Output(b.String())
}

// Property exposes branch, commit, root, dirty and the change counters.
// Counters and dirty are reported only when non-zero so conditionals can test them.
func (g *Git) Property(ctx *prompttypes.PromptContext, name string) (string, bool) {
	status := g.current(ctx)
	if status == nil {
		return "", false
	}

	var value string
	switch name {
	case "branch":
		value = status.Ref()
	case "commit":
		value = status.ShortCommit()
	case "root":
		value = status.Root
	case "upstream":
		value = status.Upstream
	case "dirty":
		if status.Dirty() {
			value = "true"
		}
	case "staged":
		value = count(status.Staged)
	case "unstaged":
		value = count(status.Unstaged)
	case "untracked":
		value = count(status.Untracked)
	case "conflicts":
		value = count(status.Conflicts)
	case "ahead":
		value = count(status.Ahead)
	case "behind":
		value = count(status.Behind)
	}
	return value, value != ""
}

func count(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
