package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/patternflow/patterns-mcp/internal/aggregator"
	"github.com/patternflow/patterns-mcp/internal/cache"
	"github.com/patternflow/patterns-mcp/internal/config"
	"github.com/patternflow/patterns-mcp/internal/fetch"
	"github.com/patternflow/patterns-mcp/internal/intent"
	"github.com/patternflow/patterns-mcp/internal/sources"
	"github.com/patternflow/patterns-mcp/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "patterns-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	warmConcurrency = 4
	warmTimeout     = 30 * time.Second
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	cfg    *config.Config
	logger zerolog.Logger

	coord   *aggregator.Coordinator
	intents *intent.Cache
	sources []*sources.RSSSource

	feedStore   *cache.Cache[[]types.Pattern]
	intentStore *cache.Cache[intent.CachedResult]
}

// NewServer creates a new MCP server instance wired to the configured
// sources.
func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	feedStore, err := cache.New[[]types.Pattern](sources.Namespace,
		cache.WithBaseDir(cfg.CacheDir),
		cache.WithSweepInterval(cfg.SweepInterval()),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize feed cache: %w", err)
	}

	intentStore, err := cache.New[intent.CachedResult](intent.Namespace,
		cache.WithBaseDir(cfg.CacheDir),
		cache.WithSweepInterval(cfg.SweepInterval()),
		cache.WithLogger(logger),
	)
	if err != nil {
		feedStore.Close()
		return nil, fmt.Errorf("failed to initialize intent cache: %w", err)
	}

	client := fetch.NewClient(fetch.WithLogger(logger))

	// One shared feed store: RSS payloads are keyed by source ID.
	var feeds []*sources.RSSSource
	var aggSources []aggregator.Source
	for _, sc := range cfg.EnabledSources() {
		src := sources.NewRSS(sc.ID, sc.Name, sc.FeedURL, client, feedStore, cfg.FeedTTL(), logger)
		feeds = append(feeds, src)
		aggSources = append(aggSources, src)
	}

	s := &Server{
		mcp:         server.NewMCPServer(ServerName, ServerVersion),
		cfg:         cfg,
		logger:      logger.With().Str("component", "mcp").Logger(),
		coord:       aggregator.New(aggSources, logger),
		intents:     intent.New(intentStore, cfg.IntentTTL()),
		sources:     feeds,
		feedStore:   feedStore,
		intentStore: intentStore,
	}

	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	s.logger.Info().
		Int("sources", len(s.sources)).
		Str("cache_dir", s.cfg.CacheDir).
		Msg("server starting")

	warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()
	s.warmFeeds(warmCtx)

	return server.ServeStdio(s.mcp)
}

// warmFeeds fetches every feed before taking traffic so first queries hit a
// populated cache. Best-effort: a failing feed is logged and fetched again
// on demand.
func (s *Server) warmFeeds(ctx context.Context) {
	err := aggregator.ForEach(ctx, warmConcurrency, s.sources, func(ctx context.Context, src *sources.RSSSource) error {
		if _, err := src.FetchAll(ctx); err != nil {
			s.logger.Warn().Err(err).Str("source", src.ID()).Msg("feed warmup failed")
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("feed warmup aborted")
	}
}

// Close stops background sweeps and flushes pending cache writes.
func (s *Server) Close() {
	s.feedStore.Close()
	s.intentStore.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchPatternsTool(), s.handleSearchPatterns)
	s.mcp.AddTool(getPatternTool(), s.handleGetPattern)
	s.mcp.AddTool(listSourcesTool(), s.handleListSources)
}
