package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternflow/patterns-mcp/internal/cache"
	"github.com/patternflow/patterns-mcp/internal/fetch"
	"github.com/patternflow/patterns-mcp/pkg/types"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Swift by Example</title>
    <item>
      <title>Advanced SwiftUI navigation stacks</title>
      <link>https://example.com/navigation</link>
      <description>Deep dive into &lt;code&gt;NavigationStack&lt;/code&gt; transitions.</description>
      <category>navigation</category>
      <category>swiftui</category>
    </item>
    <item>
      <title>Understanding actors</title>
      <link>https://example.com/actors</link>
      <description>Concurrency with actors and async await.</description>
      <category>concurrency</category>
    </item>
  </channel>
</rss>`

// feedServer serves the feed with ETag support and counts requests.
type feedServer struct {
	srv      *httptest.Server
	requests int32
	etag     string
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{etag: `"feed-v1"`}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fs.requests, 1)
		if r.Header.Get("If-None-Match") == fs.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", fs.etag)
		_, _ = w.Write([]byte(feedXML))
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func newTestRSS(t *testing.T, fs *feedServer, opts ...cache.Option) (*RSSSource, *cache.Cache[[]types.Pattern]) {
	t.Helper()
	opts = append([]cache.Option{
		cache.WithBaseDir(t.TempDir()),
		cache.WithSweepInterval(0),
	}, opts...)
	store, err := cache.New[[]types.Pattern](Namespace, opts...)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	client := fetch.NewClient(fetch.WithRetry(
		fetch.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	))
	return NewRSS("example", "Swift by Example", fs.srv.URL, client, store, time.Hour, zerolog.Nop()), store
}

func TestFetchAllParsesFeed(t *testing.T) {
	fs := newFeedServer(t)
	src, _ := newTestRSS(t, fs)

	patterns, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	p := patterns[0]
	assert.Equal(t, "Advanced SwiftUI navigation stacks", p.Title)
	assert.Equal(t, "https://example.com/navigation", p.URL)
	assert.True(t, p.HasCode, "description contains a code tag")
	assert.Contains(t, p.Topics, "swiftui")
	assert.GreaterOrEqual(t, p.RelevanceScore, baseScore)
	assert.NotContains(t, p.Excerpt, "<code>", "HTML stripped from excerpt")
	assert.Contains(t, p.ID, "example:")
}

func TestFetchAllUsesCache(t *testing.T) {
	fs := newFeedServer(t)
	src, _ := newTestRSS(t, fs)

	_, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	_, err = src.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fs.requests), "second call served from cache")
}

func TestFetchAllRevalidatesWith304(t *testing.T) {
	fs := newFeedServer(t)
	clock := struct {
		now atomic.Pointer[time.Time]
	}{}
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock.now.Store(&start)

	src, store := newTestRSS(t, fs, cache.WithClock(func() time.Time {
		return *clock.now.Load()
	}))

	first, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, int32(1), atomic.LoadInt32(&fs.requests))

	// Expire the cached payload, then fetch again: the source revalidates
	// with the stored ETag, gets a 304, and serves the stale payload.
	later := start.Add(2 * time.Hour)
	clock.now.Store(&later)

	second, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fs.requests), "one revalidation request")

	// The 304 refreshed the TTL: the payload is valid again without
	// another request.
	_, ok := store.Get("example")
	assert.True(t, ok)
	_, err = src.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fs.requests))
}

func TestSearchFiltersByToken(t *testing.T) {
	fs := newFeedServer(t)
	src, _ := newTestRSS(t, fs)

	results, err := src.Search(context.Background(), "navigation")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Advanced SwiftUI navigation stacks", results[0].Title)

	results, err = src.Search(context.Background(), "actors")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Understanding actors", results[0].Title)
}

func TestSearchEmptyQueryReturnsAll(t *testing.T) {
	fs := newFeedServer(t)
	src, _ := newTestRSS(t, fs)

	results, err := src.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFetchAllUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store, err := cache.New[[]types.Pattern](Namespace,
		cache.WithBaseDir(t.TempDir()), cache.WithSweepInterval(0))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	client := fetch.NewClient(fetch.WithRetry(
		fetch.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	))
	src := NewRSS("down", "Down", srv.URL, client, store, time.Hour, zerolog.Nop())

	_, err = src.FetchAll(context.Background())
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "hello world", stripHTML("<p>hello <b>world</b></p>"))
	assert.Equal(t, "plain", stripHTML("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "long st...", truncate("long string here", 10))
	assert.Len(t, []rune(truncate("long string here", 10)), 10)
}

func TestScoreItem(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	old := now.Add(-365 * 24 * time.Hour)

	cats := make([]string, 30)
	for i := range cats {
		cats[i] = fmt.Sprintf("topic%d", i)
	}

	tests := []struct {
		name string
		item *gofeed.Item
		want int
	}{
		{
			name: "BaseOnly",
			item: &gofeed.Item{PublishedParsed: &old},
			want: baseScore,
		},
		{
			name: "RecentBoost",
			item: &gofeed.Item{PublishedParsed: &recent},
			want: baseScore + recentBoost,
		},
		{
			name: "TopicBoostCapped",
			item: &gofeed.Item{PublishedParsed: &old, Categories: cats},
			want: baseScore + topicBoostCeiling,
		},
		{
			name: "NoDate",
			item: &gofeed.Item{},
			want: baseScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreItem(tt.item, now))
		})
	}
}
