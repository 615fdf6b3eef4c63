// Package query turns free-form natural-language queries into weighted
// token profiles and scores candidate documents against them.
package query

import "strings"

// preservedTerms is the domain-term allowlist. These tokens are kept as-is:
// never hyphen-split, never stemmed. Mostly Apple-platform vocabulary the
// crude canonicalizer would otherwise mangle.
var preservedTerms = map[string]struct{}{
	"swift":      {},
	"swiftui":    {},
	"uikit":      {},
	"appkit":     {},
	"widgetkit":  {},
	"combine":    {},
	"swiftdata":  {},
	"coredata":   {},
	"ios":        {},
	"ipados":     {},
	"macos":      {},
	"watchos":    {},
	"tvos":       {},
	"visionos":   {},
	"xcode":      {},
	"objc":       {},
	"async":      {},
	"await":      {},
	"actor":      {},
	"actors":     {},
	"mvvm":       {},
	"tca":        {},
	"arkit":      {},
	"spritekit":  {},
	"scenekit":   {},
	"testing":    {},
	"networking": {},
}

// stopwords dropped during tokenization.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "can": {}, "do": {}, "does": {}, "for": {},
	"from": {}, "how": {}, "i": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"should": {}, "that": {}, "the": {}, "this": {}, "to": {}, "use": {},
	"using": {}, "want": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "why": {}, "will": {}, "with": {}, "would": {}, "you": {},
}

// Tokenize normalizes a raw query into lowercase tokens: punctuation is
// stripped (intra-word hyphens survive long enough to split compounds),
// hyphenated compounds are split, stopwords and single-character tokens are
// dropped, and preserved domain terms pass through untouched.
func Tokenize(raw string) []string {
	lower := strings.ToLower(raw)

	var cleaned strings.Builder
	cleaned.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cleaned.WriteRune(r)
		case r == '-':
			cleaned.WriteRune(r)
		default:
			cleaned.WriteRune(' ')
		}
	}

	var tokens []string
	for _, field := range strings.Fields(cleaned.String()) {
		field = strings.Trim(field, "-")
		if field == "" {
			continue
		}
		if _, ok := preservedTerms[field]; ok {
			tokens = append(tokens, field)
			continue
		}
		if strings.Contains(field, "-") {
			for _, part := range strings.Split(field, "-") {
				tokens = appendToken(tokens, part)
			}
			continue
		}
		tokens = appendToken(tokens, field)
	}
	return tokens
}

func appendToken(tokens []string, tok string) []string {
	if len(tok) <= 1 {
		return tokens
	}
	if _, ok := preservedTerms[tok]; ok {
		return append(tokens, tok)
	}
	if _, ok := stopwords[tok]; ok {
		return tokens
	}
	return append(tokens, tok)
}

// Canonicalize applies the light stemming heuristic: strip a trailing
// "-ing" from long tokens and a trailing plural "-s" from tokens longer
// than 4 characters. This is deliberately not a linguistic stemmer; known
// false positives ("glass" -> "glas") are accepted so that ranking stays
// reproducible.
func Canonicalize(tok string) string {
	if _, ok := preservedTerms[tok]; ok {
		return tok
	}
	if strings.HasSuffix(tok, "ing") && len(tok) >= 7 {
		return tok[:len(tok)-3]
	}
	if strings.HasSuffix(tok, "s") && len(tok) > 4 {
		return tok[:len(tok)-1]
	}
	return tok
}
