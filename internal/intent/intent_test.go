package intent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternflow/patterns-mcp/internal/cache"
)

func newTestIntentCache(t *testing.T) *Cache {
	t.Helper()
	store, err := cache.New[CachedResult](Namespace,
		cache.WithBaseDir(t.TempDir()),
		cache.WithSweepInterval(0),
	)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return New(store, time.Hour)
}

func TestNormalizeQueryOrderAndCaseIndependent(t *testing.T) {
	assert.Equal(t,
		NormalizeQuery("SwiftUI Navigation"),
		NormalizeQuery("navigation swiftui"),
	)
	assert.Equal(t,
		NormalizeQuery("async swiftui"),
		NormalizeQuery("swiftui async"),
	)
}

func TestNormalizeQueryDropsStopwordsAndPunctuation(t *testing.T) {
	assert.Equal(t, "navigation swiftui", NormalizeQuery("how to use Navigation in SwiftUI?"))
	assert.Equal(t, "", NormalizeQuery("   "))
}

func TestSourceFingerprint(t *testing.T) {
	fp := SourceFingerprint([]string{"sundell", "vanderlee"})
	assert.Len(t, fp, 12)

	// Order-independent.
	assert.Equal(t, fp, SourceFingerprint([]string{"vanderlee", "sundell"}))

	// Set-sensitive.
	assert.NotEqual(t, fp, SourceFingerprint([]string{"sundell"}))
}

func TestCacheKeyStableAndFixedLength(t *testing.T) {
	k := Key{Tool: "search_patterns", Query: "async await", MinQuality: 40,
		Sources: []string{"sundell"}, CodeOnly: true}

	assert.Equal(t, CacheKey(k), CacheKey(k))
	assert.Len(t, CacheKey(k), 64) // sha256 hex

	long := k
	long.Query = "a very long query " + NormalizeQuery(k.Query) + " with many extra words about navigation"
	assert.Len(t, CacheKey(long), 64)

	noCode := k
	noCode.CodeOnly = false
	assert.NotEqual(t, CacheKey(k), CacheKey(noCode))
}

func TestGetSetRoundTrip(t *testing.T) {
	c := newTestIntentCache(t)
	k := Key{Tool: "search_patterns", Query: "async await", Sources: []string{"sundell"}}

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Set(k, Result{
		PatternIDs: []string{"p1", "p2"},
		Scores:     map[string]int{"p1": 90, "p2": 75},
		TotalCount: 2,
	})

	res, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, []string{"p1", "p2"}, res.PatternIDs)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, SourceFingerprint(k.Sources), res.SourceFingerprint)
	assert.False(t, res.Timestamp.IsZero())
}

func TestSourceSetChangeIsAMiss(t *testing.T) {
	c := newTestIntentCache(t)

	stored := Key{Tool: "search_patterns", Query: "async await", Sources: []string{"sundell"}}
	c.Set(stored, Result{PatternIDs: []string{"p1"}, TotalCount: 1})

	// Identical intent except for the enabled-source set: miss.
	wider := Key{Tool: "search_patterns", Query: "async await",
		Sources: []string{"sundell", "vanderlee"}}
	_, ok := c.Get(wider)
	assert.False(t, ok)

	// The original intent still hits.
	_, ok = c.Get(stored)
	assert.True(t, ok)
}

func TestForgedFingerprintRejected(t *testing.T) {
	store, err := cache.New[CachedResult](Namespace,
		cache.WithBaseDir(t.TempDir()),
		cache.WithSweepInterval(0),
	)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	c := New(store, time.Hour)

	k := Key{Tool: "search_patterns", Query: "async await", Sources: []string{"sundell"}}

	// An entry planted in the underlying store with a stale fingerprint
	// (e.g. left on disk from an old source configuration) is ignored.
	store.Set(CacheKey(k), CachedResult{
		Result:            Result{PatternIDs: []string{"stale"}, TotalCount: 1},
		SourceFingerprint: "000000000000",
		Timestamp:         time.Now(),
	}, time.Hour, nil)

	_, ok := c.Get(k)
	assert.False(t, ok)
}

func TestEquivalentQueriesShareEntries(t *testing.T) {
	c := newTestIntentCache(t)

	a := Key{Tool: "search_patterns", Query: "SwiftUI Navigation", Sources: []string{"sundell"}}
	b := Key{Tool: "search_patterns", Query: "navigation swiftui", Sources: []string{"sundell"}}

	c.Set(a, Result{PatternIDs: []string{"p1"}, TotalCount: 1})

	res, ok := c.Get(b)
	require.True(t, ok)
	assert.Equal(t, []string{"p1"}, res.PatternIDs)
}

func TestGetOrFetch(t *testing.T) {
	c := newTestIntentCache(t)
	k := Key{Tool: "search_patterns", Query: "async await", Sources: []string{"sundell"}}

	fetches := 0
	res, hit, err := c.GetOrFetch(k, func() (Result, error) {
		fetches++
		return Result{PatternIDs: []string{"p1"}, TotalCount: 1}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, []string{"p1"}, res.PatternIDs)

	res, hit, err = c.GetOrFetch(k, func() (Result, error) {
		fetches++
		return Result{}, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, fetches)
	assert.Equal(t, []string{"p1"}, res.PatternIDs)
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	c := newTestIntentCache(t)
	k := Key{Tool: "search_patterns", Query: "async await", Sources: []string{"sundell"}}
	boom := errors.New("all sources failed")

	_, _, err := c.GetOrFetch(k, func() (Result, error) { return Result{}, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(k)
	assert.False(t, ok)

	res, hit, err := c.GetOrFetch(k, func() (Result, error) {
		return Result{PatternIDs: []string{"p1"}, TotalCount: 1}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, res.TotalCount)
}
