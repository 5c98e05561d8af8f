// Package async runs the expensive data fetches of asynchronous segments off the
// render path. A single consumer goroutine drains a bounded FIFO queue; every
// result, including failures and timeouts, is handed to a completion callback.
// The worker never touches the cache or the segments itself.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lumen/internal/logger"
	"lumen/pkg/prompttypes"

	"github.com/charmbracelet/log"
)

// DefaultQueueSize is the capacity of the request queue.
const DefaultQueueSize = 32

// DefaultTimeout applies to requests that do not set their own timeout.
const DefaultTimeout = 2 * time.Second

// ErrQueueFull is returned by Submit when the queue has no free slot.
var ErrQueueFull = errors.New("async queue is full")

// CompletionFunc receives every finished request. It runs on the worker goroutine.
type CompletionFunc func(resp *prompttypes.AsyncResponse)

// Worker executes AsyncRequests one at a time.
type Worker struct {
	queue      chan *prompttypes.AsyncRequest
	onComplete CompletionFunc
	timeout    time.Duration
	log        *log.Logger

	nextID atomic.Uint64

	mu      sync.RWMutex
	started bool
	stopped bool

	// quit tells run to stop taking requests. abort cancels the fetch in flight.
	quit     chan struct{}
	fetchCtx context.Context
	abort    context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a stopped worker. queueSize <= 0 selects DefaultQueueSize.
func NewWorker(queueSize int, onComplete CompletionFunc) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	fetchCtx, abort := context.WithCancel(context.Background())
	return &Worker{
		queue:      make(chan *prompttypes.AsyncRequest, queueSize),
		onComplete: onComplete,
		timeout:    DefaultTimeout,
		log:        logger.NewStyledLogger("async"),
		quit:       make(chan struct{}),
		fetchCtx:   fetchCtx,
		abort:      abort,
		done:       make(chan struct{}),
	}
}

// SetDefaultTimeout changes the timeout used for requests without one.
func (w *Worker) SetDefaultTimeout(d time.Duration) {
	if d > 0 {
		w.timeout = d
	}
}

// NextID allocates a request identifier. Identifiers increase monotonically from 1.
func (w *Worker) NextID() uint64 {
	return w.nextID.Add(1)
}

// Start launches the consumer goroutine. Calling it twice is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	go w.run()
	w.log.Debug("Worker started", "queue", cap(w.queue))
}

// Submit enqueues req without blocking. A request without an ID gets one.
func (w *Worker) Submit(req *prompttypes.AsyncRequest) (uint64, error) {
	if req == nil || req.Fetch == nil {
		return 0, prompttypes.NewError(prompttypes.KindInvalidParameter, "submit", "", fmt.Errorf("request has no fetch function"))
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return 0, prompttypes.NewError(prompttypes.KindNotInitialized, "submit", req.Segment, fmt.Errorf("worker is stopped"))
	}

	if req.ID == 0 {
		req.ID = w.NextID()
	}
	select {
	case w.queue <- req:
		return req.ID, nil
	default:
		w.log.Debug("Queue full, request dropped", "segment", req.Segment, "id", req.ID)
		return req.ID, ErrQueueFull
	}
}

// Pending returns the number of queued requests.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// Stop discards queued requests and waits for the request in flight to finish.
// When ctx expires first, the fetch in flight is cancelled and its response
// reports the cancellation. Submit fails afterwards.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.quit)
	if !started {
		w.abort()
		return nil
	}

	select {
	case <-w.done:
		w.abort()
		w.log.Debug("Worker stopped")
		return nil
	case <-ctx.Done():
		w.abort()
		<-w.done
		return fmt.Errorf("failed to stop async worker: %w", ctx.Err())
	}
}

func (w *Worker) stopping() bool {
	select {
	case <-w.quit:
		return true
	default:
		return false
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			w.drain()
			return
		case req := <-w.queue:
			// Stop may have raced with the receive.
			if w.stopping() {
				w.drain()
				return
			}
			resp := w.execute(req)
			if w.onComplete != nil {
				w.onComplete(resp)
			}
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case req := <-w.queue:
			w.log.Debug("Discarding queued request", "segment", req.Segment, "id", req.ID)
		default:
			return
		}
	}
}

type result struct {
	payload any
	err     error
}

// execute runs one fetch under its deadline. A fetch that ignores cancellation is
// left running in its goroutine and its eventual result is dropped.
func (w *Worker) execute(req *prompttypes.AsyncRequest) *prompttypes.AsyncResponse {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = w.timeout
	}
	ctx, cancel := context.WithTimeout(w.fetchCtx, timeout)
	defer cancel()

	start := time.Now()
	results := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- result{err: fmt.Errorf("fetch panicked: %v", r)}
			}
		}()
		payload, err := req.Fetch(ctx, req.Directory)
		results <- result{payload: payload, err: err}
	}()

	resp := &prompttypes.AsyncResponse{
		ID:        req.ID,
		Segment:   req.Segment,
		Directory: req.Directory,
	}

	select {
	case r := <-results:
		resp.Payload, resp.Err = r.payload, r.err
		if errors.Is(r.err, context.DeadlineExceeded) {
			resp.Payload = nil
			resp.Err = timeoutError(req, timeout)
		}
	case <-ctx.Done():
		resp.Err = timeoutError(req, timeout)
		if errors.Is(ctx.Err(), context.Canceled) {
			resp.Err = prompttypes.NewError(prompttypes.KindNotInitialized, "fetch", req.Segment, ctx.Err())
		}
	}
	resp.Elapsed = time.Since(start)

	if resp.Err != nil {
		w.log.Debug("Fetch failed", "segment", req.Segment, "id", req.ID, "elapsed", resp.Elapsed, "err", resp.Err)
	} else {
		w.log.Debug("Fetch finished", "segment", req.Segment, "id", req.ID, "elapsed", resp.Elapsed)
	}
	return resp
}

func timeoutError(req *prompttypes.AsyncRequest, timeout time.Duration) error {
	return prompttypes.NewError(prompttypes.KindAsyncTimeout, "fetch", req.Segment,
		fmt.Errorf("no result after %s", timeout))
}
