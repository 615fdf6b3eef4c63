package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/patternflow/patterns-mcp/internal/intent"
	"github.com/patternflow/patterns-mcp/internal/query"
	"github.com/patternflow/patterns-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodePatternNotFound = -32001 // No pattern with the requested ID
	ErrorCodeUnknownSource   = -32002 // Requested source ID is not configured
	ErrorCodeEmptyQuery      = -32004 // Query parameter is empty
)

// handleSearchPatterns handles the search_patterns tool invocation
func (s *Server) handleSearchPatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	rawQuery, ok := args["query"].(string)
	if !ok || strings.TrimSpace(rawQuery) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 50 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 50", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	minQuality := getIntDefault(args, "min_quality", 0)
	if minQuality < 0 || minQuality > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_quality must be between 0 and 100", map[string]interface{}{
			"param": "min_quality",
			"value": minQuality,
		})
	}

	codeOnly := getBoolDefault(args, "code_only", false)

	selected, mcpErr := s.resolveSources(getStringSlice(args, "sources"))
	if mcpErr != nil {
		return nil, mcpErr
	}

	k := intent.Key{
		Tool:       "search_patterns",
		Query:      rawQuery,
		MinQuality: minQuality,
		Sources:    selected,
		CodeOnly:   codeOnly,
	}

	cached, hit, err := s.intents.GetOrFetch(k, func() (intent.Result, error) {
		return s.runSearch(ctx, rawQuery, selected, minQuality, codeOnly)
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ids := cached.PatternIDs
	if len(ids) > limit {
		ids = ids[:limit]
	}

	results := make([]map[string]interface{}, 0, len(ids))
	if len(ids) > 0 {
		index, err := s.patternIndex(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to resolve patterns", map[string]interface{}{
				"error": err.Error(),
			})
		}
		for i, id := range ids {
			p, ok := index[id]
			if !ok {
				// The item rotated out of its feed since the result set
				// was cached.
				continue
			}
			results = append(results, map[string]interface{}{
				"rank":     i + 1,
				"id":       p.ID,
				"title":    p.Title,
				"url":      p.URL,
				"excerpt":  p.Excerpt,
				"topics":   p.Topics,
				"score":    cached.Scores[id],
				"has_code": p.HasCode,
			})
		}
	}

	response := map[string]interface{}{
		"query":       rawQuery,
		"results":     results,
		"total_count": cached.TotalCount,
		"returned":    len(results),
		"cache_hit":   hit,
		"sources":     selected,
	}
	if cached.TotalCount == 0 {
		response["message"] = "No patterns matched. Try broader terms, fewer filters, or a lower min_quality threshold."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// runSearch executes the uncached search path: fan out, rank against the
// query profile, boost, filter. The result holds IDs and boosted scores for
// the full filtered set; pagination happens at response time so one cached
// entry serves every limit.
func (s *Server) runSearch(ctx context.Context, rawQuery string, sourceIDs []string, minQuality int, codeOnly bool) (intent.Result, error) {
	patterns, err := s.coord.SearchSubset(ctx, rawQuery, sourceIDs)
	if err != nil {
		return intent.Result{}, err
	}

	profile := query.BuildProfile(rawQuery)
	candidates := make([]types.Candidate, len(patterns))
	for i, p := range patterns {
		candidates[i] = p
	}

	res := intent.Result{Scores: make(map[string]int)}
	for _, r := range query.RankForQuery(candidates, profile, true) {
		p := r.Candidate.(types.Pattern)
		score := query.ApplyOverlapBoost(p.RelevanceScore, r.Overlap.Score)
		if score < minQuality {
			continue
		}
		if codeOnly && !p.HasCode {
			continue
		}
		res.PatternIDs = append(res.PatternIDs, p.ID)
		res.Scores[p.ID] = score
	}
	res.TotalCount = len(res.PatternIDs)

	s.logger.Debug().
		Str("query", rawQuery).
		Int("candidates", len(patterns)).
		Int("matched", res.TotalCount).
		Msg("search executed")

	return res, nil
}

// handleGetPattern handles the get_pattern tool invocation
func (s *Server) handleGetPattern(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	index, err := s.patternIndex(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to fetch patterns", map[string]interface{}{
			"error": err.Error(),
		})
	}

	p, ok := index[id]
	if !ok {
		return nil, newMCPError(ErrorCodePatternNotFound, "no pattern with that id", map[string]interface{}{
			"id": id,
		})
	}

	response := map[string]interface{}{
		"id":       p.ID,
		"title":    p.Title,
		"url":      p.URL,
		"content":  p.Content,
		"excerpt":  p.Excerpt,
		"topics":   p.Topics,
		"score":    p.RelevanceScore,
		"has_code": p.HasCode,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListSources handles the list_sources tool invocation
func (s *Server) handleListSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled := s.cfg.EnabledSources()
	list := make([]map[string]interface{}, 0, len(enabled))
	for _, sc := range enabled {
		list = append(list, map[string]interface{}{
			"id":       sc.ID,
			"name":     sc.Name,
			"feed_url": sc.FeedURL,
		})
	}

	response := map[string]interface{}{
		"sources":     list,
		"count":       len(list),
		"fingerprint": intent.SourceFingerprint(s.coord.SourceIDs()),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// resolveSources validates a requested source-ID list against the configured
// set. An empty request means all enabled sources.
func (s *Server) resolveSources(requested []string) ([]string, error) {
	enabled := s.coord.SourceIDs()
	if len(requested) == 0 {
		return enabled, nil
	}

	known := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		known[id] = true
	}
	for _, id := range requested {
		if !known[id] {
			return nil, newMCPError(ErrorCodeUnknownSource, "unknown source", map[string]interface{}{
				"param":   "sources",
				"value":   id,
				"allowed": enabled,
			})
		}
	}
	return requested, nil
}

// patternIndex fetches every document from the selected sources and indexes
// them by ID. Fetches are served from the feed cache in the common case.
func (s *Server) patternIndex(ctx context.Context) (map[string]types.Pattern, error) {
	patterns, err := s.coord.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]types.Pattern, len(patterns))
	for _, p := range patterns {
		index[p.ID] = p
	}
	return index, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string-array parameter; JSON arrays arrive as
// []interface{}.
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
