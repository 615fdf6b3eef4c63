package query

import (
	"sort"
	"strings"
)

const (
	// maxCompiledQueries caps the emitted query variants.
	maxCompiledQueries = 4

	// fallbackQuery is emitted when a query normalizes to nothing, so
	// downstream consumers never see an empty variant list.
	fallbackQuery = "swift"

	// repeatWeight is the per-occurrence weight multiplier.
	repeatWeight = 2

	// maxPositionBoost rewards tokens appearing early in the query.
	maxPositionBoost = 3

	// specificityCap bounds the long-token bonus.
	specificityCap = 3
)

// WeightedToken is a canonical query token with its computed weight.
type WeightedToken struct {
	Token  string `json:"token"`
	Weight int    `json:"weight"`
}

// Profile is the canonical weighted form of a raw query plus a small set of
// compiled query-string variants in priority order.
type Profile struct {
	// CompiledQueries holds at most four variants, deduplicated
	// case-insensitively, the first being the original query. Never empty.
	CompiledQueries []string

	// WeightedTokens is sorted descending by weight.
	WeightedTokens []WeightedToken
}

// BuildProfile derives a Profile from a raw query string. Weight per token
// is (occurrences × 2) + positionBoost + specificityBoost, where earlier and
// longer tokens score higher.
func BuildProfile(raw string) *Profile {
	tokens := Tokenize(raw)
	for i, tok := range tokens {
		tokens[i] = Canonicalize(tok)
	}

	counts := make(map[string]int, len(tokens))
	firstIndex := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, seen := counts[tok]; !seen {
			firstIndex[tok] = len(order)
			order = append(order, tok)
		}
		counts[tok]++
	}

	weighted := make([]WeightedToken, 0, len(order))
	for _, tok := range order {
		weighted = append(weighted, WeightedToken{
			Token:  tok,
			Weight: counts[tok]*repeatWeight + positionBoost(firstIndex[tok]) + specificityBoost(tok),
		})
	}
	sort.SliceStable(weighted, func(i, j int) bool {
		if weighted[i].Weight != weighted[j].Weight {
			return weighted[i].Weight > weighted[j].Weight
		}
		return weighted[i].Token < weighted[j].Token
	})

	return &Profile{
		CompiledQueries: compileQueries(raw, weighted),
		WeightedTokens:  weighted,
	}
}

// TopWeightSum returns the summed weight of the n highest-weighted tokens.
func (p *Profile) TopWeightSum(n int) int {
	if n > len(p.WeightedTokens) {
		n = len(p.WeightedTokens)
	}
	sum := 0
	for i := 0; i < n; i++ {
		sum += p.WeightedTokens[i].Weight
	}
	return sum
}

func positionBoost(index int) int {
	boost := maxPositionBoost - index
	if boost < 0 {
		return 0
	}
	return boost
}

func specificityBoost(tok string) int {
	boost := len(tok) - 5
	if boost < 0 {
		return 0
	}
	if boost > specificityCap {
		return specificityCap
	}
	return boost
}

// compileQueries emits variants in priority order: original query,
// all-tokens-by-weight, top-3, top-5 — deduplicated case-insensitively and
// capped at maxCompiledQueries.
func compileQueries(raw string, weighted []WeightedToken) []string {
	byWeight := make([]string, len(weighted))
	for i, wt := range weighted {
		byWeight[i] = wt.Token
	}

	candidates := []string{
		strings.TrimSpace(raw),
		strings.Join(byWeight, " "),
		strings.Join(topN(byWeight, 3), " "),
		strings.Join(topN(byWeight, 5), " "),
	}

	seen := make(map[string]struct{}, len(candidates))
	queries := make([]string, 0, maxCompiledQueries)
	for _, q := range candidates {
		if q == "" {
			continue
		}
		folded := strings.ToLower(q)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		queries = append(queries, q)
		if len(queries) == maxCompiledQueries {
			break
		}
	}

	if len(queries) == 0 {
		queries = append(queries, fallbackQuery)
	}
	return queries
}

func topN(tokens []string, n int) []string {
	if n > len(tokens) {
		n = len(tokens)
	}
	return tokens[:n]
}
