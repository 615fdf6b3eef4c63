// Package mcp implements the Model Context Protocol (MCP) server for
// patterns-mcp.
//
// The MCP server exposes three tools to AI coding assistants:
//   - search_patterns: Search aggregated development patterns with natural
//     language queries
//   - get_pattern: Fetch the full document for a single pattern by ID
//   - list_sources: List enabled content sources and their fingerprint
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server communicates with MCP clients via standard input/output,
// making it simple to integrate with any MCP-compatible client.
//
// # Tool: search_patterns
//
// Search the aggregated sources:
//
//	Request:
//	{
//	  "name": "search_patterns",
//	  "arguments": {
//	    "query": "swiftui navigation stack transitions",
//	    "sources": ["sundell"],
//	    "min_quality": 60,
//	    "code_only": true,
//	    "limit": 10
//	  }
//	}
//
//	Response:
//	{
//	  "query": "swiftui navigation stack transitions",
//	  "results": [
//	    {
//	      "rank": 1,
//	      "id": "a1b2c3d4",
//	      "title": "Customizing NavigationStack transitions",
//	      "url": "https://example.com/post",
//	      "excerpt": "...",
//	      "topics": ["swiftui", "navigation"],
//	      "score": 92,
//	      "has_code": true
//	    }
//	  ],
//	  "total_count": 4,
//	  "returned": 1,
//	  "cache_hit": false,
//	  "sources": ["sundell"]
//	}
//
// Identical concurrent searches coalesce into one fan-out, and the ranked
// result set is cached by query intent: the same tokens in any order, with
// the same filters and source set, hit the same cache entry. Empty result
// sets are a valid response with an actionable message, never an error.
//
// # Tool: get_pattern
//
// Fetch one full document:
//
//	Request:
//	{
//	  "name": "get_pattern",
//	  "arguments": {"id": "a1b2c3d4"}
//	}
//
// # Tool: list_sources
//
//	Response:
//	{
//	  "sources": [
//	    {"id": "sundell", "name": "Swift by Sundell", "feed_url": "..."}
//	  ],
//	  "count": 1,
//	  "fingerprint": "3f8a91c2d4e5"
//	}
//
// # Error Handling
//
// The MCP server returns standard JSON-RPC error responses:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "Invalid params",
//	    "data": {
//	      "param": "limit",
//	      "value": 500
//	    }
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (all sources failed, cache directory, etc.)
//   - -32001: Pattern not found
//   - -32002: Unknown source ID
//   - -32004: Query parameter is empty
//
// A single failing source never surfaces as an error: it contributes zero
// results and is logged. Only when every queried source fails does the
// search return an internal error.
//
// # Logging
//
// The MCP server logs to stderr (stdout is reserved for MCP protocol).
// Set log level via environment:
//
//	PATTERNS_MCP_LOG_LEVEL=debug patterns-mcp serve
package mcp
