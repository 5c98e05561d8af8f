package template

import (
	"sync"
)

// DefaultCacheSize bounds the number of distinct template strings kept parsed.
const DefaultCacheSize = 256

// Cache keeps parse results keyed by the raw template string. Least recently used
// entries are evicted first; pinned entries (the active theme's layouts) are never evicted.
// Parse failures are cached too, so a broken layout is not re-parsed on every prompt.
type Cache struct {
	maxSize int
	entries map[string]*cacheNode
	head    *cacheNode
	tail    *cacheNode
	pinned  map[string]bool
	mutex   sync.Mutex

	hits   int
	misses int
}

// cacheNode is an entry of the doubly-linked recency list.
type cacheNode struct {
	src    string
	parsed *ParsedTemplate
	err    error
	prev   *cacheNode
	next   *cacheNode
	pinned bool
}

// CacheStats describes cache usage.
type CacheStats struct {
	Size        int
	MaxSize     int
	PinnedCount int
	Hits        int
	Misses      int
}

// NewCache creates a parse cache holding up to maxSize templates.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	// Sentinel nodes for head and tail
	head := &cacheNode{}
	tail := &cacheNode{}
	head.next = tail
	tail.prev = head

	return &Cache{
		maxSize: maxSize,
		entries: make(map[string]*cacheNode),
		head:    head,
		tail:    tail,
		pinned:  make(map[string]bool),
	}
}

// Parse returns the cached parse of src, parsing it on first use.
func (c *Cache) Parse(src string) (*ParsedTemplate, error) {
	c.mutex.Lock()
	if node, exists := c.entries[src]; exists {
		c.hits++
		if !node.pinned {
			c.moveToHead(node)
		}
		c.mutex.Unlock()
		return node.parsed, node.err
	}
	c.misses++
	c.mutex.Unlock()

	// Parsing is pure, so a concurrent duplicate parse only costs time.
	parsed, err := Parse(src)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if node, exists := c.entries[src]; exists {
		return node.parsed, node.err
	}
	node := &cacheNode{src: src, parsed: parsed, err: err, pinned: c.pinned[src]}
	c.entries[src] = node
	c.addToHead(node)
	if len(c.entries) > c.maxSize {
		c.evictLRU()
	}
	return parsed, err
}

// SetPinned marks src as exempt from eviction, or releases it.
func (c *Cache) SetPinned(src string, pinned bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if pinned {
		c.pinned[src] = true
	} else {
		delete(c.pinned, src)
	}
	if node, exists := c.entries[src]; exists {
		node.pinned = pinned
	}
}

// Unpin releases every pinned template.
func (c *Cache) Unpin() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for src := range c.pinned {
		if node, exists := c.entries[src]; exists {
			node.pinned = false
		}
	}
	c.pinned = make(map[string]bool)
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

// Clear drops every cached template. Pins are kept and apply to later parses.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*cacheNode)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// GetStats returns cache statistics.
func (c *Cache) GetStats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	pinnedCount := 0
	for _, node := range c.entries {
		if node.pinned {
			pinnedCount++
		}
	}
	return CacheStats{
		Size:        len(c.entries),
		MaxSize:     c.maxSize,
		PinnedCount: pinnedCount,
		Hits:        c.hits,
		Misses:      c.misses,
	}
}

// Must be called with mutex locked.
func (c *Cache) moveToHead(node *cacheNode) {
	c.removeNode(node)
	c.addToHead(node)
}

// Must be called with mutex locked.
func (c *Cache) addToHead(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

// Must be called with mutex locked.
func (c *Cache) removeNode(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

// evictLRU removes the least recently used unpinned template. When every entry is
// pinned nothing is evicted and the cache may exceed maxSize.
// Must be called with mutex locked.
func (c *Cache) evictLRU() {
	for current := c.tail.prev; current != c.head; current = current.prev {
		if !current.pinned {
			c.removeNode(current)
			delete(c.entries, current.src)
			return
		}
	}
}
