// Package cache provides the in-process task cache used by the read path.
//
// The cache is a bounded map from task id to a snapshot of the task at
// the time of caching. Entries expire on two independent clocks — time
// since write and time since last access — and the oldest-accessed entry
// is evicted when the size bound is exceeded. Writers never overwrite
// entries to publish new state; they invalidate, so the next read
// re-fetches from the store. That discipline is what keeps a stale
// snapshot from ever being visible after a completed write.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// Default configuration values.
const (
	// DefaultMaxEntries is the default maximum number of cached tasks.
	DefaultMaxEntries = 1000

	// DefaultMaxAge is the default expiry measured from last write.
	DefaultMaxAge = 10 * time.Minute

	// DefaultMaxIdle is the default expiry measured from last access.
	DefaultMaxIdle = 5 * time.Minute
)

// Options configures a TaskCache. A zero or negative MaxAge or MaxIdle
// disables that expiry clock; a zero or negative MaxEntries falls back to
// the default bound.
type Options struct {
	MaxEntries int
	MaxAge     time.Duration
	MaxIdle    time.Duration
}

// DefaultOptions returns the default cache configuration.
func DefaultOptions() Options {
	return Options{
		MaxEntries: DefaultMaxEntries,
		MaxAge:     DefaultMaxAge,
		MaxIdle:    DefaultMaxIdle,
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// entry is one cached task snapshot with its two expiry clocks.
type entry struct {
	task       *domain.Task
	writtenAt  time.Time
	lastAccess time.Time
	lruElement *list.Element
}

// TaskCache is a bounded, dual-expiry LRU cache of task snapshots keyed
// by task id. It is safe for concurrent use.
type TaskCache struct {
	mu      sync.Mutex
	entries map[int64]*entry
	lru     *list.List // front = most recently accessed; element values are task ids
	opts    Options

	// now is the clock; replaceable in tests.
	now func() time.Time

	// Stats
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
}

// New creates a TaskCache with the given options.
func New(opts Options) *TaskCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}

	return &TaskCache{
		entries: make(map[int64]*entry),
		lru:     list.New(),
		opts:    opts,
		now:     time.Now,
	}
}

// Get returns a copy of the cached task for the given id, or false when
// the id is absent or the entry has expired on either clock. A hit
// refreshes the access clock and the LRU position.
func (c *TaskCache) Get(id int64) (*domain.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	now := c.now()
	if c.expired(e, now) {
		c.removeLocked(id, e)
		atomic.AddInt64(&c.expirations, 1)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	e.lastAccess = now
	c.lru.MoveToFront(e.lruElement)
	atomic.AddInt64(&c.hits, 1)
	return e.task.Clone(), true
}

// Put stores a snapshot of the task under its id, resetting both expiry
// clocks. When the size bound is exceeded, the least recently accessed
// entry is evicted. The task is copied on the way in so callers cannot
// mutate cached state afterwards.
func (c *TaskCache) Put(task *domain.Task) {
	if task == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	snapshot := task.Clone()

	if e, ok := c.entries[task.ID]; ok {
		e.task = snapshot
		e.writtenAt = now
		e.lastAccess = now
		c.lru.MoveToFront(e.lruElement)
		return
	}

	e := &entry{
		task:       snapshot,
		writtenAt:  now,
		lastAccess: now,
	}
	e.lruElement = c.lru.PushFront(task.ID)
	c.entries[task.ID] = e

	for len(c.entries) > c.opts.MaxEntries {
		c.evictOldestLocked()
	}
}

// Invalidate removes the entry for the given id, if present. It is the
// write path's obligation to call this after every successful mutation of
// that id, unconditionally.
func (c *TaskCache) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		c.removeLocked(id, e)
	}
}

// Purge removes all entries.
func (c *TaskCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[int64]*entry)
	c.lru.Init()
}

// Len returns the number of entries currently held, including any that
// have expired but not yet been observed.
func (c *TaskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the hit/miss/eviction counters.
func (c *TaskCache) Stats() Stats {
	return Stats{
		Hits:        atomic.LoadInt64(&c.hits),
		Misses:      atomic.LoadInt64(&c.misses),
		Evictions:   atomic.LoadInt64(&c.evictions),
		Expirations: atomic.LoadInt64(&c.expirations),
	}
}

// expired reports whether the entry has passed either expiry clock.
func (c *TaskCache) expired(e *entry, now time.Time) bool {
	if c.opts.MaxAge > 0 && now.Sub(e.writtenAt) > c.opts.MaxAge {
		return true
	}
	if c.opts.MaxIdle > 0 && now.Sub(e.lastAccess) > c.opts.MaxIdle {
		return true
	}
	return false
}

// evictOldestLocked drops the least recently accessed entry.
// Caller must hold c.mu.
func (c *TaskCache) evictOldestLocked() {
	oldest := c.lru.Back()
	if oldest == nil {
		return
	}
	id := oldest.Value.(int64)
	if e, ok := c.entries[id]; ok {
		c.removeLocked(id, e)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// removeLocked deletes an entry from the map and the LRU list.
// Caller must hold c.mu.
func (c *TaskCache) removeLocked(id int64, e *entry) {
	delete(c.entries, id)
	c.lru.Remove(e.lruElement)
}
