// Package intent caches ranked result sets keyed by query intent: the
// normalized combination of tool, query, quality threshold, enabled source
// set, and code filter.
//
// Entries store only lightweight result metadata (pattern IDs and scores),
// not full documents. The stored source fingerprint is the sole
// invalidation signal: when the caller's enabled-source set changes, the
// fingerprint no longer matches and the entry is treated as a plain miss —
// no explicit cache-bust API exists or is needed.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patternflow/patterns-mcp/internal/cache"
	"github.com/patternflow/patterns-mcp/internal/dedupe"
	"github.com/patternflow/patterns-mcp/internal/query"
)

// Namespace is the cache namespace intent entries live under.
const Namespace = "intent"

// fingerprintLen is the hex-truncated length of a source fingerprint.
// Collisions at this cardinality (a handful of source sets) are negligible.
const fingerprintLen = 12

// Key identifies a cacheable result set. Value object: build it, never
// mutate it.
type Key struct {
	Tool       string
	Query      string
	MinQuality int
	Sources    []string
	CodeOnly   bool
}

// Result is what a fetcher produces: the ranked IDs, their boosted scores,
// and the pre-pagination total. The fingerprint and timestamp are attached
// by the cache itself so callers cannot forge a stale fingerprint into the
// store.
type Result struct {
	PatternIDs []string       `json:"pattern_ids"`
	Scores     map[string]int `json:"scores"`
	TotalCount int            `json:"total_count"`
}

// CachedResult is a Result stamped with the fingerprint of the source set
// it was computed from and the time it was stored.
type CachedResult struct {
	Result
	SourceFingerprint string    `json:"source_fingerprint"`
	Timestamp         time.Time `json:"timestamp"`
}

// Cache wraps a tiered cache with intent-derived keys and fingerprint
// invalidation.
type Cache struct {
	store  *cache.Cache[CachedResult]
	ttl    time.Duration
	flight dedupe.Group[*CachedResult]
}

// New creates an intent cache over the given store with a fixed entry TTL.
func New(store *cache.Cache[CachedResult], ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// NormalizeQuery canonicalizes a raw query for keying: lowercase, strip
// punctuation (hyphens split), drop stopwords except preserved domain
// terms, then sort tokens alphabetically so token order cannot change the
// key ("async swiftui" and "swiftui async" hash identically).
func NormalizeQuery(raw string) string {
	tokens := query.Tokenize(raw)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// SourceFingerprint hashes the sorted source-ID list into a short stable
// fingerprint.
func SourceFingerprint(sourceIDs []string) string {
	sorted := make([]string, len(sourceIDs))
	copy(sorted, sourceIDs)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// CacheKey derives the storage key for an intent. Always hashed: the key is
// filesystem-safe and fixed-length regardless of query length.
func CacheKey(k Key) string {
	parts := fmt.Sprintf("%s::%s::q%d::%s",
		k.Tool, NormalizeQuery(k.Query), k.MinQuality, SourceFingerprint(k.Sources))
	if k.CodeOnly {
		parts += "::code"
	}
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for an intent. A stored entry whose
// fingerprint does not match the intent's current source set is treated
// identically to a miss.
func (c *Cache) Get(k Key) (*CachedResult, bool) {
	stored, ok := c.store.Get(CacheKey(k))
	if !ok {
		return nil, false
	}
	if stored.SourceFingerprint != SourceFingerprint(k.Sources) {
		return nil, false
	}
	return &stored, true
}

// Set stores a result for an intent, stamping it with the fingerprint
// computed from the intent's source set and the current time.
func (c *Cache) Set(k Key, res Result) {
	c.store.Set(CacheKey(k), CachedResult{
		Result:            res,
		SourceFingerprint: SourceFingerprint(k.Sources),
		Timestamp:         time.Now(),
	}, c.ttl, nil)
}

// GetOrFetch returns the cached result for an intent, or runs fetch —
// exactly once among concurrent identical intents — and caches what it
// returns. The second return reports whether the result was a cache hit.
func (c *Cache) GetOrFetch(k Key, fetch func() (Result, error)) (*CachedResult, bool, error) {
	if res, ok := c.Get(k); ok {
		return res, true, nil
	}

	key := CacheKey(k)
	res, err := c.flight.Do(key, func() (*CachedResult, error) {
		// A coalesced waiter may find the entry already stored.
		if res, ok := c.Get(k); ok {
			return res, nil
		}
		fetched, err := fetch()
		if err != nil {
			return nil, err
		}
		c.Set(k, fetched)
		stamped := CachedResult{
			Result:            fetched,
			SourceFingerprint: SourceFingerprint(k.Sources),
			Timestamp:         time.Now(),
		}
		return &stamped, nil
	})
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}
