// Package cache holds the last fetched payload per resource key.
//
// A lookup is a hit only while the entry is younger than the TTL. Expired
// entries are kept and can still be read with Peek, so a view can show
// stale data while a refresh is in flight or after one failed. Nothing is
// ever evicted; the cache lives as long as the session that owns it.
//
// Every fetch takes a sequence number before it goes to the network.
// Apply only accepts a payload whose sequence is newer than the stored
// one, so a slow response can never overwrite a faster, newer one.
package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrCleared is returned for a fetch that started before the cache was
// cleared. Its result belongs to a previous session.
var ErrCleared = errors.New("cache cleared while fetching")

// Metrics receives cache events
type Metrics interface {
	Hit()
	Miss()
	StaleDiscard()
}

type noopMetrics struct{}

func (noopMetrics) Hit()          {}
func (noopMetrics) Miss()         {}
func (noopMetrics) StaleDiscard() {}

// Entry is one stored payload. Entries are swapped whole, never mutated.
type Entry[V any] struct {
	Key       string
	Payload   V
	FetchedAt time.Time
	Seq       uint64
}

// Age returns how old the entry is at now
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

type options struct {
	now     func() time.Time
	metrics Metrics
}

// Option configures a Cache
type Option func(*options)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics reports hits, misses and discarded stale results
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Cache is a TTL cache keyed by resource id. Safe for concurrent use.
type Cache[V any] struct {
	ttl     time.Duration
	now     func() time.Time
	metrics Metrics

	mu      sync.RWMutex
	entries map[string]Entry[V]
	seq     uint64
	floor   uint64 // sequences at or below floor predate the last Clear
}

// New creates a cache whose entries are fresh for ttl
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now, metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[V]{
		ttl:     ttl,
		now:     o.now,
		metrics: o.metrics,
		entries: make(map[string]Entry[V]),
	}
}

// TTL returns the freshness window
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the payload if it exists and is younger than the TTL
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.Age(c.now()) >= c.ttl {
		c.metrics.Miss()
		var zero V
		return zero, false
	}

	c.metrics.Hit()
	return e.Payload, true
}

// Peek returns the stored entry regardless of age
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return e, ok
}

// Put stores v under key with the current time, overwriting any entry
func (c *Cache[V]) Put(key string, v V) {
	c.Apply(key, v, c.NextSeq(key))
}

// NextSeq issues the sequence number for a fetch that is about to start
func (c *Cache[V]) NextSeq(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	return c.seq
}

// Apply stores v if seq is newer than the stored entry's sequence.
// It reports whether the payload was accepted.
func (c *Cache[V]) Apply(key string, v V, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq <= c.floor {
		c.metrics.StaleDiscard()
		return false
	}
	if cur, ok := c.entries[key]; ok && cur.Seq >= seq {
		c.metrics.StaleDiscard()
		return false
	}

	c.entries[key] = Entry[V]{
		Key:       key,
		Payload:   v,
		FetchedAt: c.now(),
		Seq:       seq,
	}
	return true
}

// Invalidate makes the next Get for key a miss. The payload stays
// available to Peek.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.FetchedAt = time.Time{}
		c.entries[key] = e
	}
}

// Clear drops every entry. Fetches started before Clear cannot
// repopulate the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry[V])
	c.floor = c.seq
}

// Cleared reports whether a fetch holding seq started before the last Clear
func (c *Cache[V]) Cleared(seq uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return seq <= c.floor
}

// Len returns the number of stored entries, fresh or not
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
