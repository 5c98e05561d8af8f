package prompttypes

// SegmentCapability is a bit-set describing what a segment can do.
type SegmentCapability uint8

// Segment capability flags.
const (
	// CapSyncRender marks segments that render directly on the prompt path.
	CapSyncRender SegmentCapability = 1 << iota
	// CapAsyncData marks segments whose data comes from the async worker.
	// Such segments implement AsyncSegment.
	CapAsyncData
	// CapCacheable marks segments that store computed values in the cache.
	CapCacheable
	// CapProperties marks segments that expose named sub-values.
	CapProperties
	// CapDirectoryDependent marks segments whose data depends on the working directory.
	CapDirectoryDependent
)

// Has reports whether all bits of flag are set.
func (c SegmentCapability) Has(flag SegmentCapability) bool {
	return c&flag == flag
}

// SegmentOutput is the result of rendering one segment.
type SegmentOutput struct {
	// Content is the rendered text, possibly including styling directives.
	Content string
	// Width is the display width in terminal cells, excluding styling directives.
	Width int
	// Empty is true when the segment produced nothing to show.
	Empty bool
	// Separator requests a separator after this segment.
	Separator bool
}

// Segment is a named, independently rendered unit of prompt content.
// Segments are singletons within a segment store.
type Segment interface {
	Name() string
	Description() string
	Capabilities() SegmentCapability

	// Init is called once when the segment is registered.
	Init() error
	// Cleanup is called once when the segment store is closed.
	Cleanup()

	IsVisible(ctx *PromptContext) bool
	Render(ctx *PromptContext, theme *Theme) SegmentOutput
	// Property returns a named sub-value, for ${segment.property} references.
	// ctx is the same snapshot passed to Render; properties must not mutate state.
	Property(ctx *PromptContext, name string) (string, bool)
}

// AsyncSegment is implemented by segments declaring CapAsyncData.
type AsyncSegment interface {
	Segment

	// RequestAsyncData fills req (directory, timeout, fetch, cache key and tags) and records
	// req.ID as the latest expected identifier. It returns false when the segment has no
	// interest in the directory, in which case req must not be submitted.
	RequestAsyncData(req *AsyncRequest) bool
	// OnAsyncDataReady applies a worker response. Responses whose ID differs from the
	// latest expected identifier are ignored.
	OnAsyncDataReady(resp *AsyncResponse)
	// InvalidateCache drops the segment's fresh-data flag.
	InvalidateCache()
}

// SegmentInfo summarizes a registered segment for listings.
type SegmentInfo struct {
	Name         string
	Description  string
	Capabilities SegmentCapability
}
