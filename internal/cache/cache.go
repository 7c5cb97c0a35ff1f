// Package cache keeps materialized CSS keyed by the transpiled code that
// produced it, so re-rendering the compiled view does not re-execute code
// that has not changed.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an artifact stays cached after it was stored.
	DefaultTTL = 10 * time.Minute

	// DefaultMaxEntries bounds the number of artifacts held at once.
	DefaultMaxEntries = 512
)

// Key derives the cache key for code materialized with the given minify
// setting.
func Key(code string, minified bool) string {
	h := sha256.New()
	if minified {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

type artifact struct {
	key     string
	css     string
	expires time.Time
}

// Stats counts cache lookups since creation.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// ArtifactCache is a size-bounded LRU of CSS artifacts with a TTL. Expired
// entries are dropped on read and by a background sweep.
type ArtifactCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	order *list.List // front is most recently used
	items map[string]*list.Element
	stats Stats

	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a cache whose entries live for ttl (DefaultTTL when zero).
func New(ttl time.Duration) *ArtifactCache {
	return NewWithLimit(ttl, DefaultMaxEntries)
}

// NewWithLimit is New with an explicit entry bound.
func NewWithLimit(ttl time.Duration, maxEntries int) *ArtifactCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &ArtifactCache{
		ttl:   ttl,
		max:   maxEntries,
		order: list.New(),
		items: make(map[string]*list.Element),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	go c.sweepLoop(time.Minute)
	return c
}

// Get returns the CSS cached under key.
func (c *ArtifactCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return "", false
	}
	a := el.Value.(*artifact)
	if c.now().After(a.expires) {
		c.remove(el)
		c.stats.Misses++
		return "", false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return a.css, true
}

// Set stores css under key, evicting the least recently used artifact when
// the cache is full.
func (c *ArtifactCache) Set(key, css string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		a := el.Value.(*artifact)
		a.css, a.expires = css, expires
		c.order.MoveToFront(el)
		return
	}
	for c.order.Len() >= c.max {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}
	c.items[key] = c.order.PushFront(&artifact{key: key, css: css, expires: expires})
}

// Invalidate drops a single artifact.
func (c *ArtifactCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

func (c *ArtifactCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*artifact).key)
}

// sweep drops expired artifacts and returns how many were removed.
func (c *ArtifactCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*artifact).expires) {
			c.remove(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *ArtifactCache) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// Stop ends the background sweep. Safe to call more than once.
func (c *ArtifactCache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Len returns the number of cached artifacts.
func (c *ArtifactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a copy of the lookup counters.
func (c *ArtifactCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.order.Len()
	return s
}
