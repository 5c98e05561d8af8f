package segment

import (
	"fmt"
	"sync"

	"lumen/pkg/prompttypes"
)

// Store is the registry of segments. Each name maps to exactly one instance.
type Store struct {
	mu       sync.RWMutex
	segments map[string]prompttypes.Segment
	order    []string
	closed   bool
}

// NewStore creates an empty segment store.
func NewStore() *Store {
	return &Store{
		segments: make(map[string]prompttypes.Segment),
	}
}

// Register adds a segment after calling its Init hook. An Init error is returned
// and the segment is not added.
func (s *Store) Register(seg prompttypes.Segment) error {
	if seg == nil {
		return prompttypes.NewError(prompttypes.KindInvalidParameter, "register", "", fmt.Errorf("segment is nil"))
	}
	name := seg.Name()
	if name == "" {
		return prompttypes.NewError(prompttypes.KindInvalidParameter, "register", "", fmt.Errorf("segment name is empty"))
	}
	if seg.Capabilities().Has(prompttypes.CapAsyncData) {
		if _, ok := seg.(prompttypes.AsyncSegment); !ok {
			return prompttypes.NewError(prompttypes.KindInvalidParameter, "register", name,
				fmt.Errorf("async_data capability declared without async hooks"))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return prompttypes.NewError(prompttypes.KindNotInitialized, "register", name, fmt.Errorf("segment store is closed"))
	}
	if _, exists := s.segments[name]; exists {
		return prompttypes.NewError(prompttypes.KindDuplicateName, "register", name, nil)
	}
	if err := seg.Init(); err != nil {
		return fmt.Errorf("failed to initialize segment %s: %w", name, err)
	}

	s.segments[name] = seg
	s.order = append(s.order, name)
	return nil
}

// Find returns the segment registered under name.
func (s *Store) Find(name string) (prompttypes.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seg, exists := s.segments[name]
	return seg, exists
}

// All returns the segments in registration order.
func (s *Store) All() []prompttypes.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]prompttypes.Segment, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, s.segments[name])
	}
	return result
}

// Async returns the segments declaring the async_data capability, in registration order.
func (s *Store) Async() []prompttypes.AsyncSegment {
	var result []prompttypes.AsyncSegment
	for _, seg := range s.All() {
		if !seg.Capabilities().Has(prompttypes.CapAsyncData) {
			continue
		}
		if async, ok := seg.(prompttypes.AsyncSegment); ok {
			result = append(result, async)
		}
	}
	return result
}

// Infos returns listing information for every segment.
func (s *Store) Infos() []prompttypes.SegmentInfo {
	segments := s.All()
	infos := make([]prompttypes.SegmentInfo, len(segments))
	for i, seg := range segments {
		infos[i] = Info(seg)
	}
	return infos
}

// Len returns the number of registered segments.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Close calls Cleanup on every segment in reverse registration order.
// Later calls do nothing.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	order := append([]string(nil), s.order...)
	segments := s.segments
	s.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		segments[order[i]].Cleanup()
	}
}
