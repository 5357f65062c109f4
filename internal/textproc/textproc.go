// Package textproc provides query and text normalization shared by the
// lexical index, the result cache signature and the reranker.
//
// The corpus is primarily Korean with mixed English terms, so
// normalization includes a light-weight particle (조사) stripper in
// addition to the usual casing and whitespace folding.
package textproc

import (
	"regexp"
	"strings"
)

// Particles that attach to Korean nouns. Stripping them improves term
// matching without a full morphological analyzer. Longest first so
// "에서" is removed before "서" would be considered.
var particles = []string{
	"에서", "으로", "이나", "한테", "부터", "까지",
	"은", "는", "이", "가", "을", "를", "에", "로", "와", "과", "도", "의",
}

var (
	ftsSpecials = regexp.MustCompile(`["()\[\]{}*^:~-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalize lowercases, trims and collapses whitespace. Two queries
// that differ only in casing or spacing normalize to the same string,
// which is what makes the result cache signature stable.
func Normalize(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return whitespace.ReplaceAllString(normalized, " ")
}

// CleanQuery normalizes a query for full-text matching: FTS5 operator
// characters are stripped and Korean particles removed from each term.
func CleanQuery(query string) string {
	cleaned := ftsSpecials.ReplaceAllString(Normalize(query), " ")
	cleaned = whitespace.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	if cleaned == "" {
		return ""
	}

	words := strings.Split(cleaned, " ")
	for i, word := range words {
		words[i] = StripParticle(word)
	}
	return strings.Join(words, " ")
}

// StripParticle removes a trailing Korean particle from a single term.
// Single-syllable particles are ambiguous (nouns like "휴가" end in the
// same syllable as the subject particle), so those are only stripped
// when at least two runes of stem remain. Two-syllable particles are
// distinctive enough to strip down to a single-rune stem.
func StripParticle(word string) string {
	runes := []rune(word)
	for _, p := range particles {
		prunes := []rune(p)
		minStem := 2
		if len(prunes) >= 2 {
			minStem = 1
		}
		if len(runes) >= len(prunes)+minStem && strings.HasSuffix(word, p) {
			return string(runes[:len(runes)-len(prunes)])
		}
	}
	return word
}

// Keywords extracts up to max unique terms from text, normalized and
// particle-stripped. Order of first occurrence is preserved.
func Keywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	var keywords []string

	for _, word := range strings.Fields(Normalize(text)) {
		word = StripParticle(ftsSpecials.ReplaceAllString(word, ""))
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) >= max {
			break
		}
	}

	return keywords
}

// SplitSentences splits content on common sentence terminators.
// Used for snippet generation.
func SplitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
