// Package aggregator fans a query out across all enabled sources, tolerates
// partial failure, and deduplicates concurrent identical fan-out calls.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/patternflow/patterns-mcp/internal/dedupe"
	"github.com/patternflow/patterns-mcp/pkg/types"
)

// ErrInvalidConcurrency is returned when a bulk operation is given a
// non-positive worker-pool width.
var ErrInvalidConcurrency = errors.New("concurrency limit must be positive")

// ErrAllSourcesFailed is returned when every source in a fan-out rejected.
var ErrAllSourcesFailed = errors.New("all sources failed")

// ErrUnknownSource is returned when a subset fan-out names a source the
// coordinator does not have.
var ErrUnknownSource = errors.New("unknown source")

// Source is the contract a content source fulfills. Both operations reject
// on failure rather than returning partial silent results; the coordinator
// owns failure containment.
type Source interface {
	// ID returns the stable source identifier used in fingerprints.
	ID() string

	// FetchAll returns every document the source currently has.
	FetchAll(ctx context.Context) ([]types.Pattern, error)

	// Search returns candidate documents for a query with initial
	// relevance scores assigned by the source.
	Search(ctx context.Context, query string) ([]types.Pattern, error)
}

// Coordinator queries multiple independent sources concurrently. One
// failing source never aborts its siblings: it contributes zero results and
// is logged. Concurrent identical fan-outs share one execution.
type Coordinator struct {
	sources []Source
	flight  dedupe.Group[[]types.Pattern]
	logger  zerolog.Logger
}

// New creates a Coordinator over the given sources.
func New(sources []Source, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		sources: sources,
		logger:  logger.With().Str("component", "aggregator").Logger(),
	}
}

// SourceIDs returns the IDs of all enabled sources.
func (c *Coordinator) SourceIDs() []string {
	ids := make([]string, len(c.sources))
	for i, s := range c.sources {
		ids[i] = s.ID()
	}
	return ids
}

// SearchAll queries every source concurrently and returns the merged,
// ID-deduplicated results. Per-source result order is preserved; no order
// is guaranteed between sources. It errors only when every source failed.
func (c *Coordinator) SearchAll(ctx context.Context, query string) ([]types.Pattern, error) {
	return c.SearchSubset(ctx, query, nil)
}

// SearchSubset is SearchAll restricted to the named sources. A nil or
// empty ids slice means all sources. Naming an unknown source is a caller
// mistake and fails fast.
func (c *Coordinator) SearchSubset(ctx context.Context, query string, ids []string) ([]types.Pattern, error) {
	selected, err := c.selectSources(ids)
	if err != nil {
		return nil, err
	}
	key := "search::" + flightKey(selected) + "::" + query
	return c.flight.Do(key, func() ([]types.Pattern, error) {
		return c.fanOut(ctx, selected, func(ctx context.Context, s Source) ([]types.Pattern, error) {
			return s.Search(ctx, query)
		})
	})
}

// FetchAll fetches every document from every source concurrently, with the
// same failure containment and coalescing as SearchAll.
func (c *Coordinator) FetchAll(ctx context.Context) ([]types.Pattern, error) {
	key := "fetch::" + flightKey(c.sources)
	return c.flight.Do(key, func() ([]types.Pattern, error) {
		return c.fanOut(ctx, c.sources, func(ctx context.Context, s Source) ([]types.Pattern, error) {
			return s.FetchAll(ctx)
		})
	})
}

// selectSources resolves a subset of source IDs, defaulting to all.
func (c *Coordinator) selectSources(ids []string) ([]Source, error) {
	if len(ids) == 0 {
		return c.sources, nil
	}
	byID := make(map[string]Source, len(c.sources))
	for _, s := range c.sources {
		byID[s.ID()] = s
	}
	selected := make([]Source, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// flightKey builds a coalescing key component from a source selection, so
// fan-outs over different subsets never share an execution.
func flightKey(sources []Source) string {
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID()
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// fanOut runs op against each selected source in its own goroutine and
// collects the successes. Failed sources are logged and skipped.
func (c *Coordinator) fanOut(ctx context.Context, sources []Source, op func(context.Context, Source) ([]types.Pattern, error)) ([]types.Pattern, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	perSource := make([][]types.Pattern, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results, err := op(ctx, src)
			if err != nil {
				errs[i] = err
				c.logger.Warn().Err(err).Str("source", src.ID()).Msg("source failed, skipping")
				return
			}
			perSource[i] = results
		}(i, src)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(sources) {
		return nil, fmt.Errorf("%w: %d sources", ErrAllSourcesFailed, failed)
	}

	// Merge in source-slot order so each source's own ordering survives,
	// deduplicating by pattern ID (earlier sources win).
	seen := make(map[string]struct{})
	var merged []types.Pattern
	for _, results := range perSource {
		for _, p := range results {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}
	return merged, nil
}

// ForEach runs fn over items with at most width concurrent executions.
// Used to bound bulk file fetches instead of unbounded fan-out. The first
// error cancels the remaining work and is returned.
func ForEach[T any](ctx context.Context, width int, items []T, fn func(context.Context, T) error) error {
	if width <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, width)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(width)
	for _, item := range items {
		g.Go(func() error {
			return fn(gctx, item)
		})
	}
	return g.Wait()
}
