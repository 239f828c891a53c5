// Package cache provides the in-memory translation cache: an LRU map
// keyed by (source language, target language, normalized text) that sits
// in front of the persistent bilingual dictionary.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a thread-safe LRU cache of translation results.
type Cache struct {
	storage    map[string]*Entry
	maxEntries int
	lru        *recencyList
	mutex      sync.RWMutex
	logger     Logger

	hits   int64
	misses int64
}

// New constructs a Cache with the given entry capacity. maxEntries <= 0
// uses DefaultMaxEntries.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		storage:    make(map[string]*Entry),
		maxEntries: maxEntries,
		lru:        newRecencyList(),
	}
}

// NewWithLogger constructs a Cache that logs hits, misses, and evictions.
func NewWithLogger(maxEntries int, logger Logger) *Cache {
	c := New(maxEntries)
	c.logger = logger
	return c
}

// SetLogger attaches or replaces the cache's logger.
func (c *Cache) SetLogger(logger Logger) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.logger = logger
}

// Get looks up a translation by its composite key, marking it as recently
// used on a hit.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.storage[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		if c.logger != nil {
			c.logger.Log("debug", fmt.Sprintf("[CACHE_MISS] key=%s", key))
		}
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	entry.AccessTime = time.Now().UnixMilli()
	c.lru.moveToFront(key)
	if c.logger != nil {
		c.logger.Log("debug", fmt.Sprintf("[CACHE_HIT] key=%s confidence=%.2f", key, entry.Confidence))
	}
	return entry, true
}

// Put inserts or overwrites a translation entry, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *Cache) Put(key string, entry *Entry) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry.CreateTime.IsZero() {
		entry.CreateTime = time.Now()
	}
	entry.AccessTime = time.Now().UnixMilli()

	if _, exists := c.storage[key]; !exists && len(c.storage) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.storage[key] = entry
	c.lru.touch(key)
	if c.logger != nil {
		c.logger.Log("debug", fmt.Sprintf("[CACHE_PUT] key=%s entries=%d/%d", key, len(c.storage), c.maxEntries))
	}
}

func (c *Cache) evictOldestLocked() {
	oldest := c.lru.evictColdest()
	if oldest == "" {
		return
	}
	delete(c.storage, oldest)
	if c.logger != nil {
		c.logger.Log("debug", fmt.Sprintf("[CACHE_EVICT] key=%s", oldest))
	}
}

// Remove deletes a single entry.
func (c *Cache) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, exists := c.storage[key]; exists {
		delete(c.storage, key)
		c.lru.evict(key)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.storage = make(map[string]*Entry)
	c.lru = newRecencyList()
}

// EntryCount returns the current number of cached entries.
func (c *Cache) EntryCount() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.storage)
}

// MaxEntries returns the configured capacity.
func (c *Cache) MaxEntries() int {
	return c.maxEntries
}

// UpdateMaxEntries changes capacity, evicting immediately if the new
// capacity is smaller than the current entry count.
func (c *Cache) UpdateMaxEntries(newMax int) {
	if newMax <= 0 {
		newMax = DefaultMaxEntries
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.maxEntries = newMax
	for len(c.storage) > c.maxEntries {
		c.evictOldestLocked()
	}
}

// GetStats returns a snapshot of the cache's counters.
func (c *Cache) GetStats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	var usage float64
	if c.maxEntries > 0 {
		usage = float64(len(c.storage)) / float64(c.maxEntries) * 100
	}

	return Stats{
		TotalEntries: len(c.storage),
		MaxEntries:   c.maxEntries,
		UsagePercent: usage,
		Hits:         hits,
		Misses:       misses,
		HitRate:      hitRate,
	}
}
