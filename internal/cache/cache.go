// Package cache implements a per-namespace two-tier cache: a bounded
// in-memory LRU map over a disk directory of JSON entries.
//
// The cache is an optimization, never a source of truth. Every disk failure
// (unreadable file, corrupt JSON, failed write) degrades to a miss or a
// no-op; callers always have the option to refetch. Entries carry a TTL and
// optional HTTP conditional-revalidation metadata so a caller can resend a
// stale ETag after expiry and keep the old data valid on a 304.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/patternflow/patterns-mcp/internal/dedupe"
)

const (
	// DefaultMaxEntries bounds the in-memory tier per namespace.
	DefaultMaxEntries = 256

	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 5 * time.Minute

	// maxRawKeyLen is the longest key stored under its sanitized name.
	// Longer keys are content-hashed to keep file names bounded.
	maxRawKeyLen = 100
)

// HTTPMeta carries HTTP conditional-revalidation headers captured from a
// previous response.
type HTTPMeta struct {
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// entry is the stored form of a cached value, serialized as-is to disk.
type entry[T any] struct {
	Data       T         `json:"data"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
	HTTPMeta   *HTTPMeta `json:"http_meta,omitempty"`
}

func (e *entry[T]) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > time.Duration(e.TTLSeconds)*time.Second
}

// Options configure a Cache. The zero value uses defaults.
type Options struct {
	baseDir       string
	maxEntries    int
	sweepInterval time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// Option customizes cache construction.
type Option func(*Options)

// WithBaseDir sets the directory under which the namespace directory lives.
// Defaults to os.UserCacheDir()/patterns-mcp.
func WithBaseDir(dir string) Option {
	return func(o *Options) { o.baseDir = dir }
}

// WithMaxEntries bounds the in-memory tier.
func WithMaxEntries(n int) Option {
	return func(o *Options) { o.maxEntries = n }
}

// WithSweepInterval sets the background expiry sweep period. Zero or
// negative disables the sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(o *Options) { o.sweepInterval = d }
}

// WithLogger attaches a logger for debug output on swallowed I/O errors.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// WithClock overrides the time source. Tests use this to advance time past
// TTLs without sleeping.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.now = now }
}

// Cache is a two-tier (memory + disk) cache for one namespace. It must not
// be shared across namespaces: the LRU map and the in-flight record are
// per-instance state.
type Cache[T any] struct {
	namespace string
	dir       string // "" when the namespace directory could not be created
	mem       *lru.Cache[string, *entry[T]]
	flight    dedupe.Group[T]
	logger    zerolog.Logger
	now       func() time.Time

	// Background sweep lifecycle. The ticker is owned by the cache and
	// stopped by Close; it never keeps the process alive on its own.
	stopSweep chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once

	// Pending asynchronous disk writes, drained by Close.
	writes sync.WaitGroup
}

// New creates a cache for the given namespace. A namespace maps to one
// in-memory LRU and one disk directory; the same logical key always maps to
// the same on-disk path within it.
func New[T any](namespace string, opts ...Option) (*Cache[T], error) {
	if namespace == "" {
		return nil, fmt.Errorf("cache namespace cannot be empty")
	}

	o := Options{
		maxEntries:    DefaultMaxEntries,
		sweepInterval: DefaultSweepInterval,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEntries <= 0 {
		return nil, fmt.Errorf("cache max entries must be positive, got %d", o.maxEntries)
	}

	if o.baseDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		o.baseDir = filepath.Join(base, "patterns-mcp")
	}

	mem, err := lru.New[string, *entry[T]](o.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	dir := filepath.Join(o.baseDir, sanitizeKey(namespace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		// Disk tier unavailable: run memory-only rather than fail.
		o.logger.Debug().Err(err).Str("namespace", namespace).
			Msg("cache disk tier unavailable, running memory-only")
		dir = ""
	}

	c := &Cache[T]{
		namespace: namespace,
		dir:       dir,
		mem:       mem,
		logger:    o.logger.With().Str("cache", namespace).Logger(),
		now:       o.now,
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}

	if o.sweepInterval > 0 {
		go c.sweepLoop(o.sweepInterval)
	} else {
		close(c.sweepDone)
	}

	return c, nil
}

// Get returns the cached value for key, or ok=false on miss or expiry.
// Memory is consulted first; a valid disk entry repopulates memory. Expired
// memory entries are evicted on access.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	now := c.now()

	if e, ok := c.mem.Get(key); ok {
		if !e.expired(now) {
			return e.Data, true
		}
		c.mem.Remove(key)
	}

	e := c.readDisk(key)
	if e == nil || e.expired(now) {
		return zero, false
	}
	c.mem.Add(key, e)
	return e.Data, true
}

// Set stores data under key. The memory tier is written synchronously, so a
// Get immediately after Set always hits; the disk write happens in the
// background and its failure leaves the entry valid for this process.
func (c *Cache[T]) Set(key string, data T, ttl time.Duration, meta *HTTPMeta) {
	e := &entry[T]{
		Data:       data,
		CreatedAt:  c.now(),
		TTLSeconds: int64(ttl / time.Second),
		HTTPMeta:   meta,
	}
	c.mem.Add(key, e)
	c.writeDiskAsync(key, e)
}

// GetOrFetch returns the cached value for key if present and valid;
// otherwise it runs fetch exactly once among all concurrent callers,
// caches the result with the given TTL, and hands it to every waiter.
// A fetch failure propagates to all waiters and is never cached.
func (c *Cache[T]) GetOrFetch(key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	return c.flight.Do(key, func() (T, error) {
		// A waiter that lost the race to the in-flight check may find the
		// value populated by the time its turn comes.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			var zero T
			return zero, err
		}
		c.Set(key, v, ttl, nil)
		return v, nil
	})
}

// GetExpiredEntry returns the entry's data and HTTP metadata regardless of
// TTL expiry, memory first, falling back to disk. Conditional revalidation
// needs the old ETag even after the TTL has lapsed.
func (c *Cache[T]) GetExpiredEntry(key string) (T, *HTTPMeta, bool) {
	if e, ok := c.mem.Get(key); ok {
		return e.Data, e.HTTPMeta, true
	}
	if e := c.readDisk(key); e != nil {
		return e.Data, e.HTTPMeta, true
	}
	var zero T
	return zero, nil, false
}

// RefreshTTL resets an entry's age and TTL without refetching, preserving
// its data and HTTP metadata. Used after a 304 Not Modified. No-op when the
// key is absent from both tiers.
func (c *Cache[T]) RefreshTTL(key string, ttl time.Duration) {
	e, ok := c.mem.Get(key)
	if !ok {
		e = c.readDisk(key)
	}
	if e == nil {
		return
	}
	refreshed := &entry[T]{
		Data:       e.Data,
		CreatedAt:  c.now(),
		TTLSeconds: int64(ttl / time.Second),
		HTTPMeta:   e.HTTPMeta,
	}
	c.mem.Add(key, refreshed)
	c.writeDiskAsync(key, refreshed)
}

// Clear wipes both tiers for this namespace.
func (c *Cache[T]) Clear() {
	c.mem.Purge()
	if c.dir == "" {
		return
	}
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, f := range files {
		if err := os.Remove(filepath.Join(c.dir, f.Name())); err != nil {
			c.logger.Debug().Err(err).Str("file", f.Name()).Msg("clear: remove failed")
		}
	}
}

// ClearExpired removes expired entries from both tiers and reports how many
// distinct keys were swept.
func (c *Cache[T]) ClearExpired() int {
	now := c.now()
	swept := make(map[string]struct{})

	for _, key := range c.mem.Keys() {
		if e, ok := c.mem.Peek(key); ok && e.expired(now) {
			c.mem.Remove(key)
			swept[key] = struct{}{}
		}
	}

	if c.dir != "" {
		files, err := os.ReadDir(c.dir)
		if err == nil {
			for _, f := range files {
				path := filepath.Join(c.dir, f.Name())
				e := c.readDiskPath(path)
				if e == nil || !e.expired(now) {
					continue
				}
				if err := os.Remove(path); err != nil {
					c.logger.Debug().Err(err).Str("file", f.Name()).Msg("sweep: remove failed")
					continue
				}
				swept[strings.TrimSuffix(f.Name(), ".json")] = struct{}{}
			}
		}
	}

	return len(swept)
}

// Close stops the background sweep and waits for pending disk writes. The
// cache remains usable for reads from memory afterwards, but no further
// sweeps run.
func (c *Cache[T]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopSweep)
	})
	<-c.sweepDone
	c.writes.Wait()
}

// Namespace returns the namespace this cache serves.
func (c *Cache[T]) Namespace() string { return c.namespace }

// sweepLoop runs the periodic expiry sweep until Close.
func (c *Cache[T]) sweepLoop(interval time.Duration) {
	defer close(c.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n := c.ClearExpired()
			if n > 0 {
				c.logger.Debug().Int("swept", n).Msg("expiry sweep")
			}
		case <-c.stopSweep:
			return
		}
	}
}

// keyPath maps a logical key to its on-disk path. Deterministic: the same
// key always yields the same path within a namespace.
func (c *Cache[T]) keyPath(key string) string {
	name := sanitizeKey(key)
	if len(key) > maxRawKeyLen {
		sum := sha256.Sum256([]byte(key))
		name = hex.EncodeToString(sum[:])
	}
	return filepath.Join(c.dir, name+".json")
}

func (c *Cache[T]) readDisk(key string) *entry[T] {
	if c.dir == "" {
		return nil
	}
	return c.readDiskPath(c.keyPath(key))
}

func (c *Cache[T]) readDiskPath(path string) *entry[T] {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var e entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entry: treat as a miss.
		c.logger.Debug().Err(err).Str("path", path).Msg("corrupt cache entry")
		return nil
	}
	return &e
}

func (c *Cache[T]) writeDiskAsync(key string, e *entry[T]) {
	if c.dir == "" {
		return
	}
	path := c.keyPath(key)
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		raw, err := json.Marshal(e)
		if err != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache entry not serializable")
			return
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache disk write failed")
		}
	}()
}

// sanitizeKey makes a key safe to use as a file or directory name.
func sanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
