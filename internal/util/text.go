package util

import (
	"strings"
	"unicode"
)

// ScrubControlChars removes bytes and control characters that Postgres text
// columns reject (especially NUL / 0x00 from some PDF extractors).
func ScrubControlChars(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		r = append(r, ch)
	}
	return string(r)
}

// SplitSentences splits on terminal punctuation, keeping the punctuation with
// each sentence so the pieces can be rejoined verbatim. Heuristic by design;
// abbreviations will over-split.
func SplitSentences(s string) []string {
	out := make([]string, 0, 8)
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			x := strings.TrimSpace(b.String())
			if x != "" {
				out = append(out, x)
			}
			b.Reset()
		}
	}
	rest := strings.TrimSpace(b.String())
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

// TruncateWords keeps the first max whitespace-delimited words of s.
func TruncateWords(s string, max int) string {
	if max <= 0 {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) <= max {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:max], " ")
}

// WordCount counts whitespace-delimited words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// NormalizeKey lower-cases, strips punctuation, and collapses whitespace.
// Used as a dedup key for near-identical sentences.
func NormalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TokenSet returns the distinct lower-cased alphanumeric tokens of s.
func TokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.Fields(NormalizeKey(s)) {
		out[tok] = struct{}{}
	}
	return out
}

// JaccardSimilarity computes token-level Jaccard overlap between two texts.
func JaccardSimilarity(a, b string) float64 {
	sa := TokenSet(a)
	sb := TokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
