package util

import (
	"sort"
	"strings"
)

// DisplaySnippet trims a chunk for API responses.
func DisplaySnippet(s string, maxRunes int) string {
	return trimClean(s, maxRunes)
}

// DisplayEvidenceSnippet extracts the sentence(s) most relevant to a query.
func DisplayEvidenceSnippet(chunkText, query string, maxRunes int) string {
	chunkText = trimClean(chunkText, 4000)
	if chunkText == "" {
		return ""
	}
	queryTerms := meaningfulTerms(query)
	if len(queryTerms) == 0 {
		return trimClean(chunkText, maxRunes)
	}

	sentences := SplitSentences(chunkText)
	if len(sentences) == 0 {
		return trimClean(chunkText, maxRunes)
	}

	type scored struct {
		sentence string
		score    int
	}
	list := make([]scored, 0, len(sentences))
	for _, s := range sentences {
		low := strings.ToLower(s)
		score := 0
		for _, term := range queryTerms {
			if strings.Contains(low, term) {
				score++
			}
		}
		list = append(list, scored{sentence: s, score: score})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score == list[j].score {
			return len(list[i].sentence) < len(list[j].sentence)
		}
		return list[i].score > list[j].score
	})

	best := strings.TrimSpace(list[0].sentence)
	if best == "" {
		return trimClean(chunkText, maxRunes)
	}
	if len(list) > 1 && list[1].score > 0 {
		combo := best + " " + strings.TrimSpace(list[1].sentence)
		return trimClean(combo, maxRunes)
	}
	return trimClean(best, maxRunes)
}

func meaningfulTerms(s string) []string {
	s = strings.ToLower(trimClean(s, 2000))
	fields := strings.Fields(s)
	stop := map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {}, "in": {}, "on": {},
		"for": {}, "is": {}, "are": {}, "was": {}, "were": {}, "what": {}, "how": {}, "why": {},
		"which": {}, "that": {}, "this": {}, "these": {}, "those": {}, "with": {}, "from": {}, "shall": {},
	}
	uniq := map[string]struct{}{}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ",.;:!?()[]{}\"'`")
		if len(f) < 3 {
			continue
		}
		if _, ok := stop[f]; ok {
			continue
		}
		if _, ok := uniq[f]; ok {
			continue
		}
		uniq[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func trimClean(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	s = ScrubControlChars(s)
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return strings.TrimSpace(string(runes))
}
