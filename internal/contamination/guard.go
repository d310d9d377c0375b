// Package contamination filters generated text down to sentences that are
// demonstrably grounded in retrieved evidence, and detects generic-filler
// phrases that mark unsupported or machine-sounding prose.
package contamination

import (
	"regexp"
	"strings"

	"safeplan/internal/util"
)

// DefaultMinOverlap is the Jaccard token-overlap floor below which a sentence
// is considered ungrounded when evidence texts are supplied.
const DefaultMinOverlap = 0.1

// minRetention is the fraction of the original word count the cleaned text
// must keep; below it the guard signals total insufficiency.
const minRetention = 0.3

// bannedPhrases are whole-phrase, case-insensitive markers of generic filler.
// The validator shares this list through Detect.
var bannedPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)best practice recommendations`),
	regexp.MustCompile(`(?i)it is important to note`),
	regexp.MustCompile(`(?i)it should be noted that`),
	regexp.MustCompile(`(?i)placeholder text`),
	regexp.MustCompile(`(?i)\bAI[- ]generated\b`),
	regexp.MustCompile(`(?i)as an AI\b`),
	regexp.MustCompile(`(?i)\bLLM guidance\b`),
	regexp.MustCompile(`(?i)language model`),
	regexp.MustCompile(`(?i)lorem ipsum`),
	regexp.MustCompile(`(?i)to be determined`),
	regexp.MustCompile(`(?i)\bTBD\b`),
	regexp.MustCompile(`(?i)insert .{0,40} here`),
	regexp.MustCompile(`(?i)consult (the )?appropriate (personnel|authorities)`),
	regexp.MustCompile(`(?i)generally speaking`),
	regexp.MustCompile(`(?i)industry[- ]standard guidelines suggest`),
}

// Guard applies the banned-phrase and evidence-overlap filters. The zero
// value is ready to use.
type Guard struct{}

// Filter removes sentences that match a banned phrase and, when evidence
// is non-empty, sentences whose token overlap with every evidence text
// falls below minOverlap (pass 0 for the default). If the cleaned result
// retains under 30% of the original word count it returns an empty string;
// callers must treat that as a hard failure rather than degraded output.
// The second return is the number of sentences removed.
func (Guard) Filter(text string, evidence []string, minOverlap float64) (string, int) {
	if strings.TrimSpace(text) == "" {
		return "", 0
	}
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}

	sentences := util.SplitSentences(text)
	kept := make([]string, 0, len(sentences))
	removed := 0
	for _, s := range sentences {
		if matchesBanned(s) != "" || !grounded(s, evidence, minOverlap) {
			removed++
			continue
		}
		kept = append(kept, s)
	}

	cleaned := strings.Join(kept, " ")
	orig := util.WordCount(text)
	if orig > 0 && float64(util.WordCount(cleaned)) < minRetention*float64(orig) {
		return "", removed
	}
	return cleaned, removed
}

// Detect returns the distinct banned-phrase matches found in text, in
// pattern order. Read-only diagnostic used by the pipeline validator.
func (Guard) Detect(text string) []string {
	out := make([]string, 0, 2)
	seen := map[string]struct{}{}
	for _, re := range bannedPhrases {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		key := strings.ToLower(m)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

func matchesBanned(sentence string) string {
	for _, re := range bannedPhrases {
		if m := re.FindString(sentence); m != "" {
			return m
		}
	}
	return ""
}

func grounded(sentence string, evidence []string, minOverlap float64) bool {
	if len(evidence) == 0 {
		return true
	}
	for _, ev := range evidence {
		if util.JaccardSimilarity(sentence, ev) >= minOverlap {
			return true
		}
	}
	return false
}
