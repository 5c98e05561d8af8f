package prompttypes

import (
	"context"
	"time"
)

// FetchFunc performs the expensive computation behind an async request.
// It must honor ctx cancellation; the worker abandons it at the deadline either way.
type FetchFunc func(ctx context.Context, dir string) (any, error)

// AsyncRequest asks the worker to compute data for a segment.
type AsyncRequest struct {
	// ID is allocated by the worker before the segment fills the request.
	ID        uint64
	Segment   string
	Directory string
	Timeout   time.Duration

	// CacheKey and Tags tell the composer where to store a successful result.
	CacheKey string
	Tags     []string

	Fetch FetchFunc
}

// AsyncResponse carries the outcome of an AsyncRequest.
type AsyncResponse struct {
	ID        uint64
	Segment   string
	Directory string
	Payload   any
	Err       error
	Elapsed   time.Duration
}

// OK reports whether the fetch succeeded.
func (r *AsyncResponse) OK() bool {
	return r.Err == nil
}
