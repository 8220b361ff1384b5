package embedcache

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/codeask/codeask/pkg/types"
)

// Defaults for the cache policy
const (
	DefaultCapacity      = 5000
	DefaultTTL           = 7 * 24 * time.Hour
	DefaultFlushEvery    = 25
	DefaultFlushInterval = 5 * time.Minute

	// evictFraction of entries removed in one bulk pass at capacity
	evictFraction = 0.2

	// staleAge before a low-value entry is eligible for Optimize pruning
	staleAge = 7 * 24 * time.Hour
)

// Entry is one cached vector with its bookkeeping. Access count and last
// access mutate on every hit; everything else is immutable after creation.
type Entry struct {
	ContentHash string
	Vector      []float64
	CreatedAt   time.Time
	AccessCount int
	LastAccess  time.Time
}

// Stats tracks cache effectiveness across the process lifetime
type Stats struct {
	Hits   int64
	Misses int64
}

// Snapshot is the durable record shape the store round-trips
type Snapshot struct {
	Entries []Entry
	Stats   Stats
	SavedAt time.Time
}

// Store persists cache snapshots. Load errors are never fatal: a corrupt
// store is treated as an empty cache and only costs recomputation.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Options configures the cache policy. Zero values take defaults.
type Options struct {
	Capacity      int
	TTL           time.Duration
	FlushEvery    int // writes between dirty flushes
	FlushInterval time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Capacity <= 0 {
		out.Capacity = DefaultCapacity
	}
	if out.TTL <= 0 {
		out.TTL = DefaultTTL
	}
	if out.FlushEvery <= 0 {
		out.FlushEvery = DefaultFlushEvery
	}
	if out.FlushInterval <= 0 {
		out.FlushInterval = DefaultFlushInterval
	}
	return out
}

// Cache is a content-hash-keyed persistent store of computed vectors with
// LRU bulk eviction and TTL expiry. It is never authoritative for
// correctness - losing it only adds recomputation cost.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	opts    Options
	store   Store
	stats   Stats

	dirty            bool
	flushing         bool // guards against overlapping flushes
	writesSinceFlush int

	now func() time.Time // stubbed in tests
}

// New creates a cache, loading the persisted snapshot if a store is given.
// Already-expired entries are dropped immediately; a corrupt store starts
// the cache empty.
func New(ctx context.Context, store Store, opts Options) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		opts:    opts.withDefaults(),
		store:   store,
		now:     time.Now,
	}

	if store == nil {
		return c
	}

	snap, err := store.Load(ctx)
	if err != nil {
		log.Printf("embedcache: %v: starting empty (%v)", types.ErrCacheCorrupt, err)
		return c
	}
	if snap == nil {
		return c
	}

	cutoff := c.now().Add(-c.opts.TTL)
	for i := range snap.Entries {
		e := snap.Entries[i]
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		c.entries[e.ContentHash] = &e
	}
	c.stats = snap.Stats

	return c
}

// Get returns the cached vector for the given content, or a miss if absent
// or expired. Hits update the entry's access count and last-access time.
func (c *Cache) Get(content string) ([]float64, bool) {
	hash := types.HashContent(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[hash]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	now := c.now()
	if now.Sub(e.CreatedAt) > c.opts.TTL {
		delete(c.entries, hash)
		c.stats.Misses++
		c.dirty = true
		return nil, false
	}

	e.AccessCount++
	e.LastAccess = now
	c.stats.Hits++
	c.dirty = true

	vec := make([]float64, len(e.Vector))
	copy(vec, e.Vector)
	return vec, true
}

// Set stores a vector under the content's hash, evicting the
// least-recently-accessed 20% in one bulk pass when at capacity.
func (c *Cache) Set(content string, vector []float64) {
	hash := types.HashContent(content)
	now := c.now()

	vec := make([]float64, len(vector))
	copy(vec, vector)

	c.mu.Lock()
	if _, exists := c.entries[hash]; !exists && len(c.entries) >= c.opts.Capacity {
		c.evictLeastRecent()
	}

	c.entries[hash] = &Entry{
		ContentHash: hash,
		Vector:      vec,
		CreatedAt:   now,
		AccessCount: 0,
		LastAccess:  now,
	}
	c.dirty = true
	c.writesSinceFlush++
	shouldFlush := c.writesSinceFlush >= c.opts.FlushEvery
	c.mu.Unlock()

	if shouldFlush {
		if err := c.Persist(context.Background()); err != nil {
			log.Printf("embedcache: flush failed: %v", err)
		}
	}
}

// Has reports whether an unexpired entry exists for the content
func (c *Cache) Has(content string) bool {
	hash := types.HashContent(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[hash]
	if !ok {
		return false
	}
	return c.now().Sub(e.CreatedAt) <= c.opts.TTL
}

// Delete removes the entry for the content, reporting whether one existed
func (c *Cache) Delete(content string) bool {
	hash := types.HashContent(content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[hash]; !ok {
		return false
	}
	delete(c.entries, hash)
	c.dirty = true
	return true
}

// Clear removes all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
	c.dirty = true
}

// Len returns the number of resident entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a copy of the hit/miss counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// evictLeastRecent removes the least-recently-accessed 20% of entries in one
// bulk pass. Caller holds the lock.
func (c *Cache) evictLeastRecent() {
	n := int(float64(len(c.entries)) * evictFraction)
	if n < 1 {
		n = 1
	}

	byAge := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		byAge = append(byAge, e)
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].LastAccess.Before(byAge[j].LastAccess)
	})

	for _, e := range byAge[:n] {
		delete(c.entries, e.ContentHash)
	}
	c.dirty = true
}

// Cleanup purges expired entries eagerly and returns how many were removed.
// Expiry is otherwise handled lazily on access.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.opts.TTL)
	removed := 0
	for hash, e := range c.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(c.entries, hash)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Optimize prunes long-run low-value entries: those in the bottom
// access-count quartile that have not been touched for seven days or more.
// Returns how many entries were removed.
func (c *Cache) Optimize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return 0
	}

	counts := make([]int, 0, len(c.entries))
	for _, e := range c.entries {
		counts = append(counts, e.AccessCount)
	}
	sort.Ints(counts)
	quartile := counts[len(counts)/4]

	staleCutoff := c.now().Add(-staleAge)
	removed := 0
	for hash, e := range c.entries {
		if e.AccessCount <= quartile && e.LastAccess.Before(staleCutoff) {
			delete(c.entries, hash)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed
}

// Persist flushes to the store only if dirty. The flushing flag, not a
// lock, guards against overlapping flushes: access is single-writer.
func (c *Cache) Persist(ctx context.Context) error {
	c.mu.Lock()
	if c.store == nil || !c.dirty || c.flushing {
		c.mu.Unlock()
		return nil
	}
	c.flushing = true

	snap := &Snapshot{
		Entries: make([]Entry, 0, len(c.entries)),
		Stats:   c.stats,
		SavedAt: c.now(),
	}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, *e)
	}
	c.mu.Unlock()

	err := c.store.Save(ctx, snap)

	c.mu.Lock()
	c.flushing = false
	if err == nil {
		c.dirty = false
		c.writesSinceFlush = 0
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// StartAutoFlush persists on a fixed timer until ctx is cancelled
func (c *Cache) StartAutoFlush(ctx context.Context) {
	interval := c.opts.FlushInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Persist(ctx); err != nil {
					log.Printf("embedcache: periodic flush failed: %v", err)
				}
			}
		}
	}()
}

// Close performs the final flush so recent hits and writes are not lost
func (c *Cache) Close(ctx context.Context) error {
	return c.Persist(ctx)
}
