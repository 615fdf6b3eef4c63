package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchPatternsTool returns the tool definition for search_patterns
func searchPatternsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_patterns",
		Description: "Search aggregated development patterns and articles with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"sources": map[string]interface{}{
					"type":        "array",
					"description": "Restrict the search to these source IDs (default: all enabled sources)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"min_quality": map[string]interface{}{
					"type":        "integer",
					"description": "Minimum relevance score threshold after ranking (0-100)",
					"default":     0,
					"minimum":     0,
					"maximum":     100,
				},
				"code_only": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, only return patterns containing code samples",
					"default":     false,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     10,
					"minimum":     1,
					"maximum":     50,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getPatternTool returns the tool definition for get_pattern
func getPatternTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_pattern",
		Description: "Fetch the full document for a single pattern by its ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Pattern ID as returned by search_patterns",
				},
			},
			Required: []string{"id"},
		},
	}
}

// listSourcesTool returns the tool definition for list_sources
func listSourcesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_sources",
		Description: "List the enabled content sources and the fingerprint of the current source set",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
