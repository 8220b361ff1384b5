package embedcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	snap    *Snapshot
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) Load(ctx context.Context) (*Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.snap, nil
}

func (s *memStore) Save(ctx context.Context, snap *Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snap = snap
	s.saves++
	return nil
}

func newTestCache(t *testing.T, store Store, opts Options) (*Cache, *time.Time) {
	t.Helper()
	now := time.Now()
	c := New(context.Background(), store, opts)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t, nil, Options{})

	vec := []float64{1.5, -2.25, 3}
	c.Set("func main() {}", vec)

	got, ok := c.Get("func main() {}")
	require.True(t, ok)
	assert.Equal(t, vec, got)

	// whitespace-insensitive keying
	got2, ok := c.Get("  func main() {}\n")
	require.True(t, ok)
	assert.Equal(t, vec, got2)

	_, ok = c.Get("something else")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_ReturnsCopy(t *testing.T) {
	c, _ := newTestCache(t, nil, Options{})
	c.Set("content", []float64{1, 2})

	got, _ := c.Get("content")
	got[0] = 99

	again, _ := c.Get("content")
	assert.Equal(t, []float64{1, 2}, again)
}

func TestCache_TTLExpiry(t *testing.T) {
	c, now := newTestCache(t, nil, Options{TTL: time.Hour})
	c.Set("old", []float64{1})

	*now = now.Add(2 * time.Hour)

	_, ok := c.Get("old")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_BulkEviction(t *testing.T) {
	c, now := newTestCache(t, nil, Options{Capacity: 10, FlushEvery: 1000})

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("content-%d", i), []float64{float64(i)})
		*now = now.Add(time.Second)
	}
	require.Equal(t, 10, c.Len())

	// touch the newer half so the older half is least recently accessed
	for i := 5; i < 10; i++ {
		_, ok := c.Get(fmt.Sprintf("content-%d", i))
		require.True(t, ok)
		*now = now.Add(time.Second)
	}

	// at capacity: one insert evicts 20% (2 entries) in one pass
	c.Set("content-new", []float64{99})
	assert.Equal(t, 9, c.Len())

	_, ok := c.Get("content-0")
	assert.False(t, ok)
	_, ok = c.Get("content-1")
	assert.False(t, ok)
	_, ok = c.Get("content-9")
	assert.True(t, ok)
}

func TestCache_Optimize(t *testing.T) {
	c, now := newTestCache(t, nil, Options{FlushEvery: 1000})

	c.Set("cold", []float64{1})
	c.Set("hot", []float64{2})
	for i := 0; i < 10; i++ {
		_, ok := c.Get("hot")
		require.True(t, ok)
	}

	// cold entry untouched past the stale age
	*now = now.Add(8 * 24 * time.Hour)
	// keep hot alive within TTL semantics by refreshing creation
	c.Set("hot", []float64{2})
	_, _ = c.Get("hot")

	removed := c.Optimize()
	assert.Equal(t, 1, removed)
	assert.False(t, c.Has("cold"))
	assert.True(t, c.Has("hot"))
}

func TestCache_PersistAndReload(t *testing.T) {
	store := &memStore{}
	c, _ := newTestCache(t, store, Options{FlushEvery: 1000})

	c.Set("alpha", []float64{1, 2})
	c.Set("beta", []float64{3})
	_, ok := c.Get("alpha")
	require.True(t, ok)

	require.NoError(t, c.Persist(context.Background()))
	require.NotNil(t, store.snap)
	assert.Len(t, store.snap.Entries, 2)

	reloaded := New(context.Background(), store, Options{})
	assert.Equal(t, 2, reloaded.Len())

	got, ok := reloaded.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, got)

	// access counters survive the round trip
	for _, e := range store.snap.Entries {
		if e.ContentHash == hashOf("alpha") {
			assert.Equal(t, 1, e.AccessCount)
		}
	}
}

func TestCache_PersistSkipsWhenClean(t *testing.T) {
	store := &memStore{}
	c, _ := newTestCache(t, store, Options{FlushEvery: 1000})

	c.Set("x", []float64{1})
	require.NoError(t, c.Persist(context.Background()))
	require.Equal(t, 1, store.saves)

	// nothing changed, no second save
	require.NoError(t, c.Persist(context.Background()))
	assert.Equal(t, 1, store.saves)
}

func TestCache_FlushEveryWrites(t *testing.T) {
	store := &memStore{}
	c, _ := newTestCache(t, store, Options{FlushEvery: 3})

	c.Set("a", []float64{1})
	c.Set("b", []float64{2})
	assert.Equal(t, 0, store.saves)

	c.Set("c", []float64{3})
	assert.Equal(t, 1, store.saves)
}

func TestCache_CorruptStoreStartsEmpty(t *testing.T) {
	store := &memStore{loadErr: errors.New("blob truncated")}
	c := New(context.Background(), store, Options{})

	assert.Equal(t, 0, c.Len())

	// cache stays usable
	c.Set("fresh", []float64{1})
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCache_LoadDropsExpired(t *testing.T) {
	old := time.Now().Add(-30 * 24 * time.Hour)
	store := &memStore{snap: &Snapshot{
		Entries: []Entry{
			{ContentHash: "stale", Vector: []float64{1}, CreatedAt: old, LastAccess: old},
		},
	}}

	c := New(context.Background(), store, Options{})
	assert.Equal(t, 0, c.Len())
}

func TestCache_Cleanup(t *testing.T) {
	c, now := newTestCache(t, nil, Options{TTL: time.Hour, FlushEvery: 1000})
	c.Set("a", []float64{1})
	*now = now.Add(30 * time.Minute)
	c.Set("b", []float64{2})
	*now = now.Add(45 * time.Minute)

	removed := c.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func hashOf(content string) string {
	c := New(context.Background(), nil, Options{})
	c.Set(content, []float64{0})
	for hash := range c.entries {
		return hash
	}
	return ""
}
