package types

import "strings"

// Pattern represents a single content document produced by a source.
// Scores are on a 0-100 scale where higher is more relevant.
type Pattern struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	URL            string   `json:"url"`
	Content        string   `json:"content"`
	Excerpt        string   `json:"excerpt"`
	Topics         []string `json:"topics,omitempty"`
	RelevanceScore int      `json:"relevance_score"`
	HasCode        bool     `json:"has_code"`
}

// Candidate is the view of a document the ranking engine depends on.
// Any document kind that can supply a stable ID, a scorable text haystack,
// and a base relevance score can flow through ranking.
type Candidate interface {
	// CandidateID returns a stable identifier, unique across sources.
	CandidateID() string

	// Haystack returns the text the overlap scorer matches query tokens
	// against.
	Haystack() string

	// BaseScore returns the document's source-assigned relevance (0-100).
	BaseScore() int
}

// CandidateID implements Candidate.
func (p Pattern) CandidateID() string { return p.ID }

// Haystack implements Candidate. Title and topics are included ahead of the
// excerpt and body so short documents still match on their metadata.
func (p Pattern) Haystack() string {
	var b strings.Builder
	b.WriteString(p.Title)
	for _, t := range p.Topics {
		b.WriteString(" ")
		b.WriteString(t)
	}
	b.WriteString(" ")
	b.WriteString(p.Excerpt)
	b.WriteString(" ")
	b.WriteString(p.Content)
	return b.String()
}

// BaseScore implements Candidate.
func (p Pattern) BaseScore() int { return p.RelevanceScore }

// Validate checks that a pattern coming off a source boundary is usable.
func (p Pattern) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Title == "" && p.Content == "" && p.Excerpt == "" {
		return ErrEmptyDocument
	}
	if p.RelevanceScore < 0 || p.RelevanceScore > 100 {
		return ErrInvalidRelevanceScore
	}
	return nil
}
