// Package types provides shared type definitions for the patterns MCP server.
//
// This package defines the domain types used across components, most
// importantly Pattern — a scored content document fetched from an upstream
// source — and the Candidate view the ranking engine depends on.
//
// # Core Types
//
// Pattern represents an article, post, or snippet retrieved from a source:
//
//	pattern := types.Pattern{
//	    ID:             "sundell:3f9a1c",
//	    Title:          "Building custom navigation stacks",
//	    URL:            "https://example.com/navigation-stacks",
//	    Topics:         []string{"navigation", "architecture"},
//	    RelevanceScore: 70,
//	}
//
// # Candidate
//
// The ranking engine never depends on Pattern directly. It consumes the
// Candidate interface (stable ID, scorable haystack text, base score), which
// decouples scoring from source-specific document variants:
//
//	overlap := query.ComputeOverlap(candidate.Haystack(), profile)
//
// # Validation
//
// Pattern implements a Validate method used at the source boundary:
//
//	if err := pattern.Validate(); err != nil {
//	    return fmt.Errorf("bad document from %s: %w", src.ID(), err)
//	}
package types
