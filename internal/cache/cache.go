// Package cache provides the tag-indexed key/value store that holds computed prompt data.
// Entries never expire on their own: they stay until a tag they carry is invalidated,
// or they are overwritten or removed explicitly.
package cache

import (
	"sort"
	"sync"
	"time"
)

// Entry is a cached value with its invalidation tags.
type Entry struct {
	Key   string
	Value any
	Tags  map[string]struct{}
	// CreatedAt is metadata only; it plays no part in invalidation.
	CreatedAt time.Time
}

// HasTag reports whether the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	_, ok := e.Tags[tag]
	return ok
}

// Cache is a tag-indexed store safe for concurrent use.
// Reads share a read lock; every mutation holds the write lock for its full duration.
type Cache struct {
	mutex   sync.RWMutex
	entries map[string]*Entry
	// byTag indexes keys by tag so invalidation touches only tagged entries.
	byTag map[string]map[string]struct{}
	now   func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		byTag:   make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Get retrieves the value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	return entry.Value, true
}

// Entry returns a copy of the entry stored under key, tags included.
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return Entry{}, false
	}
	tags := make(map[string]struct{}, len(entry.Tags))
	for tag := range entry.Tags {
		tags[tag] = struct{}{}
	}
	return Entry{Key: entry.Key, Value: entry.Value, Tags: tags, CreatedAt: entry.CreatedAt}, true
}

// Set stores value under key, replacing any previous entry and its tags.
func (c *Cache) Set(key string, value any, tags ...string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if old, exists := c.entries[key]; exists {
		c.unindex(old)
	}

	entry := &Entry{
		Key:       key,
		Value:     value,
		Tags:      make(map[string]struct{}, len(tags)),
		CreatedAt: c.now(),
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		entry.Tags[tag] = struct{}{}
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	c.entries[key] = entry
}

// InvalidateByTag removes every entry carrying tag and returns how many were removed.
// Entries without the tag are untouched.
func (c *Cache) InvalidateByTag(tag string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	keys, ok := c.byTag[tag]
	if !ok {
		return 0
	}

	removed := 0
	for key := range keys {
		if entry, exists := c.entries[key]; exists {
			c.unindex(entry)
			delete(c.entries, key)
			removed++
		}
	}
	delete(c.byTag, tag)
	return removed
}

// Remove deletes the entry stored under key, if any.
func (c *Cache) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, exists := c.entries[key]; exists {
		c.unindex(entry)
		delete(c.entries, key)
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*Entry)
	c.byTag = make(map[string]map[string]struct{})
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Keys returns all keys in sorted order.
func (c *Cache) Keys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetStats returns cache statistics for debugging.
func (c *Cache) GetStats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return Stats{
		Size: len(c.entries),
		Tags: len(c.byTag),
	}
}

// Stats provides information about cache usage.
type Stats struct {
	Size int // Current number of entries
	Tags int // Number of distinct tags in use
}

// unindex drops entry's key from the tag index. Must be called with mutex locked.
func (c *Cache) unindex(entry *Entry) {
	for tag := range entry.Tags {
		keys := c.byTag[tag]
		delete(keys, entry.Key)
		if len(keys) == 0 {
			delete(c.byTag, tag)
		}
	}
}
