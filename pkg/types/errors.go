package types

import "errors"

// Domain errors for type validation
var (
	ErrMissingID             = errors.New("pattern ID cannot be empty")
	ErrEmptyDocument         = errors.New("pattern has no title, excerpt, or content")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 100")
)
