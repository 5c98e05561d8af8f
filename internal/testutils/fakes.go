package testutils

import (
	"context"
	"sync"

	"lumen/pkg/prompttypes"
)

// FakeSegment is a configurable synchronous segment.
type FakeSegment struct {
	SegName    string
	Caps       prompttypes.SegmentCapability
	Visible    bool
	Content    string
	Properties map[string]string
	InitErr    error

	// OnCleanup is called from Cleanup, for ordering assertions.
	OnCleanup func(name string)

	mu          sync.Mutex
	renderCalls int
}

// NewFakeSegment creates a visible fake segment rendering content.
func NewFakeSegment(name, content string) *FakeSegment {
	return &FakeSegment{
		SegName:    name,
		Caps:       prompttypes.CapSyncRender | prompttypes.CapProperties,
		Visible:    true,
		Content:    content,
		Properties: map[string]string{},
	}
}

// Name implements prompttypes.Segment.
func (f *FakeSegment) Name() string { return f.SegName }

// Description implements prompttypes.Segment.
func (f *FakeSegment) Description() string { return "fake " + f.SegName }

// Capabilities implements prompttypes.Segment.
func (f *FakeSegment) Capabilities() prompttypes.SegmentCapability { return f.Caps }

// Init implements prompttypes.Segment.
func (f *FakeSegment) Init() error { return f.InitErr }

// Cleanup implements prompttypes.Segment.
func (f *FakeSegment) Cleanup() {
	if f.OnCleanup != nil {
		f.OnCleanup(f.SegName)
	}
}

// IsVisible implements prompttypes.Segment.
func (f *FakeSegment) IsVisible(*prompttypes.PromptContext) bool { return f.Visible }

// Render implements prompttypes.Segment.
func (f *FakeSegment) Render(*prompttypes.PromptContext, *prompttypes.Theme) prompttypes.SegmentOutput {
	f.mu.Lock()
	f.renderCalls++
	f.mu.Unlock()

	if f.Content == "" {
		return prompttypes.SegmentOutput{Empty: true}
	}
	return prompttypes.SegmentOutput{Content: f.Content, Width: len([]rune(f.Content))}
}

// Property implements prompttypes.Segment.
func (f *FakeSegment) Property(_ *prompttypes.PromptContext, name string) (string, bool) {
	value, ok := f.Properties[name]
	return value, ok
}

// RenderCalls returns how many times Render was called.
func (f *FakeSegment) RenderCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renderCalls
}

// FakeAsyncSegment is an async segment whose fetch result is supplied by the test.
// Its payload is exposed as the "value" property once applied.
type FakeAsyncSegment struct {
	FakeSegment

	// Relevant decides whether a directory needs a request. Nil means always.
	Relevant func(dir string) bool
	// Fetch is installed on every request. Nil returns the directory as payload.
	Fetch prompttypes.FetchFunc
	Tags  []string

	mu          sync.Mutex
	latestID    uint64
	fresh       bool
	payload     any
	requests    []prompttypes.AsyncRequest
	applied     []uint64
	invalidated int
}

// NewFakeAsyncSegment creates an async fake segment.
func NewFakeAsyncSegment(name string) *FakeAsyncSegment {
	return &FakeAsyncSegment{
		FakeSegment: FakeSegment{
			SegName:    name,
			Caps:       prompttypes.CapAsyncData | prompttypes.CapProperties | prompttypes.CapDirectoryDependent,
			Visible:    true,
			Properties: map[string]string{},
		},
		Tags: []string{"vcs"},
	}
}

// RequestAsyncData implements prompttypes.AsyncSegment.
func (f *FakeAsyncSegment) RequestAsyncData(req *prompttypes.AsyncRequest) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.latestID = req.ID
	if f.Relevant != nil && !f.Relevant(req.Directory) {
		return false
	}

	fetch := f.Fetch
	if fetch == nil {
		fetch = func(_ context.Context, dir string) (any, error) { return dir, nil }
	}
	req.Segment = f.SegName
	req.CacheKey = f.SegName + ":" + req.Directory
	req.Tags = append([]string(nil), f.Tags...)
	req.Fetch = fetch
	f.requests = append(f.requests, *req)
	return true
}

// OnAsyncDataReady implements prompttypes.AsyncSegment.
func (f *FakeAsyncSegment) OnAsyncDataReady(resp *prompttypes.AsyncResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if resp.ID != f.latestID {
		return
	}
	f.applied = append(f.applied, resp.ID)
	if !resp.OK() {
		f.fresh = false
		f.payload = nil
		return
	}
	f.fresh = true
	f.payload = resp.Payload
}

// InvalidateCache implements prompttypes.AsyncSegment.
func (f *FakeAsyncSegment) InvalidateCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fresh = false
	f.payload = nil
	f.invalidated++
}

// IsVisible reports whether fresh data has been applied.
func (f *FakeAsyncSegment) IsVisible(*prompttypes.PromptContext) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fresh
}

// Render draws the payload.
func (f *FakeAsyncSegment) Render(*prompttypes.PromptContext, *prompttypes.Theme) prompttypes.SegmentOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.fresh {
		return prompttypes.SegmentOutput{Empty: true}
	}
	text, _ := f.payload.(string)
	return prompttypes.SegmentOutput{Content: text, Width: len([]rune(text))}
}

// Property exposes value, the applied payload.
func (f *FakeAsyncSegment) Property(_ *prompttypes.PromptContext, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name != "value" || !f.fresh {
		return "", false
	}
	text, _ := f.payload.(string)
	return text, text != ""
}

// Requests returns the requests prepared so far.
func (f *FakeAsyncSegment) Requests() []prompttypes.AsyncRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]prompttypes.AsyncRequest(nil), f.requests...)
}

// Applied returns the ids of the responses that were applied.
func (f *FakeAsyncSegment) Applied() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.applied...)
}

// Invalidations returns how many times InvalidateCache was called.
func (f *FakeAsyncSegment) Invalidations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}

// HasFreshData reports whether a response is currently applied.
func (f *FakeAsyncSegment) HasFreshData() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fresh
}

// LatestID returns the latest expected request id.
func (f *FakeAsyncSegment) LatestID() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latestID
}
