// Package sources implements upstream content sources. Each source
// satisfies the aggregator.Source contract: fetch everything, or search
// with source-assigned initial relevance scores.
package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/patternflow/patterns-mcp/internal/cache"
	"github.com/patternflow/patterns-mcp/internal/dedupe"
	"github.com/patternflow/patterns-mcp/internal/fetch"
	"github.com/patternflow/patterns-mcp/internal/query"
	"github.com/patternflow/patterns-mcp/pkg/types"
)

const (
	// Namespace is the cache namespace RSS payloads live under.
	Namespace = "rss"

	excerptLen = 300

	baseScore         = 50
	recentBoost       = 20 // published within the last 30 days
	semiRecentBoost   = 10 // published within the last 180 days
	topicBoostPerTag  = 2
	topicBoostCeiling = 10
)

// RSSSource serves patterns from one RSS/Atom feed, cached with HTTP
// conditional revalidation: expired cache entries are revalidated with the
// stored ETag / Last-Modified, and a 304 refreshes the TTL without
// re-parsing the feed.
type RSSSource struct {
	id      string
	name    string
	feedURL string

	client *fetch.Client
	store  *cache.Cache[[]types.Pattern]
	ttl    time.Duration
	parser *gofeed.Parser
	flight dedupe.Group[[]types.Pattern]
	logger zerolog.Logger
}

// NewRSS creates an RSS source backed by the given cache namespace store.
func NewRSS(id, name, feedURL string, client *fetch.Client, store *cache.Cache[[]types.Pattern], ttl time.Duration, logger zerolog.Logger) *RSSSource {
	return &RSSSource{
		id:      id,
		name:    name,
		feedURL: feedURL,
		client:  client,
		store:   store,
		ttl:     ttl,
		parser:  gofeed.NewParser(),
		logger:  logger.With().Str("source", id).Logger(),
	}
}

// ID implements aggregator.Source.
func (s *RSSSource) ID() string { return s.id }

// Name returns the human-readable source name.
func (s *RSSSource) Name() string { return s.name }

// FetchAll implements aggregator.Source. Concurrent callers coalesce into
// one feed fetch; a valid cached payload short-circuits entirely.
func (s *RSSSource) FetchAll(ctx context.Context) ([]types.Pattern, error) {
	if patterns, ok := s.store.Get(s.id); ok {
		return patterns, nil
	}

	return s.flight.Do(s.id, func() ([]types.Pattern, error) {
		if patterns, ok := s.store.Get(s.id); ok {
			return patterns, nil
		}
		return s.refresh(ctx)
	})
}

// refresh fetches the feed with conditional revalidation and updates the
// cache. Must only run inside the in-flight guard.
func (s *RSSSource) refresh(ctx context.Context) ([]types.Pattern, error) {
	stale, meta, hasStale := s.store.GetExpiredEntry(s.id)

	res, err := s.client.ConditionalGet(ctx, s.feedURL, meta)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", s.id, err)
	}

	if res.NotModified {
		if !hasStale {
			// A 304 with nothing cached should not happen; treat it as an
			// upstream inconsistency rather than inventing data.
			return nil, fmt.Errorf("feed %s returned 304 with no cached entry", s.id)
		}
		s.store.RefreshTTL(s.id, s.ttl)
		s.logger.Debug().Msg("feed not modified, TTL refreshed")
		return stale, nil
	}

	feed, err := s.parser.ParseString(*res.Data)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.id, err)
	}

	patterns := s.patternsFromFeed(feed)
	s.store.Set(s.id, patterns, s.ttl, &res.Meta)
	s.logger.Debug().Int("patterns", len(patterns)).Msg("feed refreshed")
	return patterns, nil
}

// Search implements aggregator.Source: fetch everything, then keep items
// whose haystack contains at least one query token. Scores come from the
// fetch-time heuristic; the ranking engine re-scores downstream.
func (s *RSSSource) Search(ctx context.Context, rawQuery string) ([]types.Pattern, error) {
	patterns, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	tokens := query.Tokenize(rawQuery)
	if len(tokens) == 0 {
		return patterns, nil
	}

	var matches []types.Pattern
	for _, p := range patterns {
		haystack := strings.ToLower(p.Haystack())
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				matches = append(matches, p)
				break
			}
		}
	}
	return matches, nil
}

func (s *RSSSource) patternsFromFeed(feed *gofeed.Feed) []types.Pattern {
	now := time.Now()
	patterns := make([]types.Pattern, 0, len(feed.Items))
	for _, item := range feed.Items {
		raw := item.Content
		if raw == "" {
			raw = item.Description
		}

		p := types.Pattern{
			ID:             s.id + ":" + itemID(item.Link),
			Title:          item.Title,
			URL:            item.Link,
			Content:        stripHTML(raw),
			Excerpt:        truncate(stripHTML(item.Description), excerptLen),
			Topics:         item.Categories,
			RelevanceScore: scoreItem(item, now),
			HasCode:        looksLikeCode(raw),
		}
		if p.Excerpt == "" {
			p.Excerpt = truncate(p.Content, excerptLen)
		}
		if err := p.Validate(); err != nil {
			s.logger.Debug().Err(err).Str("link", item.Link).Msg("skipping invalid feed item")
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns
}

// scoreItem assigns the initial relevance score: a fixed base plus recency
// and topic-richness boosts, clamped to 100.
func scoreItem(item *gofeed.Item, now time.Time) int {
	score := baseScore

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published != nil {
		age := now.Sub(*published)
		switch {
		case age < 30*24*time.Hour:
			score += recentBoost
		case age < 180*24*time.Hour:
			score += semiRecentBoost
		}
	}

	topicBoost := len(item.Categories) * topicBoostPerTag
	if topicBoost > topicBoostCeiling {
		topicBoost = topicBoostCeiling
	}
	score += topicBoost

	if score > 100 {
		score = 100
	}
	return score
}

// itemID derives a stable short identifier from an item link.
func itemID(link string) string {
	sum := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", sum[:8])
}

func looksLikeCode(raw string) bool {
	return strings.Contains(raw, "<code") || strings.Contains(raw, "<pre") ||
		strings.Contains(raw, "```")
}

// stripHTML removes tags and collapses whitespace. Good enough for
// excerpts; not an HTML parser.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
