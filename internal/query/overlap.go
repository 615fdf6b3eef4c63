package query

import (
	"math"
	"sort"
	"strings"

	"github.com/patternflow/patterns-mcp/pkg/types"
)

const (
	// strongMatchRatio is the fraction of the top-4 token weight a document
	// must reach for a long query to count as a strong match. Prevents a
	// specific query from being satisfied by its most generic term alone.
	strongMatchRatio = 0.35

	// overlapBoostCap bounds how much raw overlap feeds into the boost.
	overlapBoostCap = 20

	// overlapBoostMultiplier scales capped overlap into score points.
	overlapBoostMultiplier = 1.5

	// maxScore is the score ceiling for a document.
	maxScore = 100
)

// Overlap is the outcome of scoring one document against one profile.
// Derived, never stored: recompute per (document, profile) pair.
type Overlap struct {
	Score         int `json:"score"`
	MatchedTokens int `json:"matched_tokens"`
}

// ComputeOverlap sums the weight of every profile token that appears as a
// substring of the document text, case-insensitively.
func ComputeOverlap(text string, p *Profile) Overlap {
	lower := strings.ToLower(text)
	var o Overlap
	for _, wt := range p.WeightedTokens {
		if strings.Contains(lower, wt.Token) {
			o.Score += wt.Weight
			o.MatchedTokens++
		}
	}
	return o
}

// IsStrongOverlap classifies whether an overlap is a genuine match rather
// than a generic keyword hit. Queries of one or two tokens need only a
// single match; longer queries need at least two matched tokens and a score
// of at least 35% of the summed top-4 token weight.
func IsStrongOverlap(o Overlap, p *Profile) bool {
	n := len(p.WeightedTokens)
	if n == 0 {
		return false
	}
	if n <= 2 {
		return o.MatchedTokens >= 1
	}
	if o.MatchedTokens < 2 {
		return false
	}
	return float64(o.Score) >= strongMatchRatio*float64(p.TopWeightSum(4))
}

// ApplyOverlapBoost raises a base relevance score by the capped, scaled
// overlap score, clamped to 100. Overlap can only raise a score, never
// lower it.
func ApplyOverlapBoost(baseScore, overlapScore int) int {
	if overlapScore <= 0 {
		return baseScore
	}
	capped := overlapScore
	if capped > overlapBoostCap {
		capped = overlapBoostCap
	}
	boosted := baseScore + int(math.Round(float64(capped)*overlapBoostMultiplier))
	if boosted > maxScore {
		return maxScore
	}
	return boosted
}

// Ranked pairs a candidate with its computed overlap.
type Ranked struct {
	Candidate types.Candidate
	Overlap   Overlap
}

// CompareByOverlapThenScore orders by overlap score descending, breaking
// ties with the candidate's own base relevance score descending. Returns a
// negative value when a sorts before b.
func CompareByOverlapThenScore(a, b Ranked) int {
	if a.Overlap.Score != b.Overlap.Score {
		return b.Overlap.Score - a.Overlap.Score
	}
	return b.Candidate.BaseScore() - a.Candidate.BaseScore()
}

// RankForQuery scores every candidate against the profile, keeps the strong
// matches, and sorts them by overlap then base score. When nothing is
// strong and fallbackToAll is set, the original list is returned unranked
// (with overlaps attached) rather than returning nothing.
func RankForQuery(candidates []types.Candidate, p *Profile, fallbackToAll bool) []Ranked {
	all := make([]Ranked, 0, len(candidates))
	strong := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		r := Ranked{Candidate: c, Overlap: ComputeOverlap(c.Haystack(), p)}
		all = append(all, r)
		if IsStrongOverlap(r.Overlap, p) {
			strong = append(strong, r)
		}
	}

	if len(strong) == 0 {
		if fallbackToAll {
			return all
		}
		return nil
	}

	sort.SliceStable(strong, func(i, j int) bool {
		return CompareByOverlapThenScore(strong[i], strong[j]) < 0
	})
	return strong
}
