// Package extract pulls project metadata, work activities, and hazards out of
// sanitized specification text with keyword and label heuristics. No LLM is
// involved; results feed the retriever's query builder and the validator's
// metadata gate.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

var ws = regexp.MustCompile(`\s+`)

// CanonicalName lower-cases, strips separators, and collapses whitespace so
// detected terms dedup cleanly.
func CanonicalName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	s = ws.ReplaceAllString(s, " ")
	return s
}

// activityTerms are definable-feature-of-work markers looked for in project
// text. Matching is substring over canonicalized text.
var activityTerms = []string{
	"concrete placement", "concrete cutting", "masonry", "demolition",
	"excavation", "trenching", "steel erection", "roofing", "welding",
	"crane operations", "rigging", "scaffolding", "paving", "pile driving",
	"abrasive blasting", "painting", "electrical work", "hvac installation",
	"plumbing", "utility installation",
}

// hazardTerms are hazard markers, kept separate from activities because the
// sub-plan trigger table treats them interchangeably but the section
// generator does not.
var hazardTerms = []string{
	"silica", "fall hazard", "confined space", "asbestos", "lead paint",
	"overhead line", "energized", "noise", "heat stress", "struck-by",
	"caught-in", "trench collapse", "hot work", "airborne dust",
}

// DetectActivities returns the distinct work activities found in text, in
// the order of the static term table.
func DetectActivities(text string) []string {
	return detectTerms(text, activityTerms)
}

// DetectHazards returns the distinct hazards found in text.
func DetectHazards(text string) []string {
	return detectTerms(text, hazardTerms)
}

func detectTerms(text string, terms []string) []string {
	canon := CanonicalName(text)
	out := make([]string, 0, 4)
	for _, term := range terms {
		if strings.Contains(canon, CanonicalName(term)) {
			out = append(out, term)
		}
	}
	return out
}

// Metadata holds the heuristically extracted top-level project fields.
type Metadata struct {
	ProjectName     string
	Location        string
	Owner           string
	PrimeContractor string
}

// Labeled-field patterns in priority order per field. The first match wins;
// values are taken from the remainder of the line.
var metadataPatterns = map[string][]*regexp.Regexp{
	"name": {
		regexp.MustCompile(`(?im)^\s*project\s*(?:name|title)?\s*[:\-]\s*(.{3,120})$`),
		regexp.MustCompile(`(?im)^\s*title\s*[:\-]\s*(.{3,120})$`),
	},
	"location": {
		regexp.MustCompile(`(?im)^\s*(?:project\s+)?location\s*[:\-]\s*(.{3,120})$`),
		regexp.MustCompile(`(?im)^\s*site\s*[:\-]\s*(.{3,120})$`),
	},
	"owner": {
		regexp.MustCompile(`(?im)^\s*owner\s*[:\-]\s*(.{3,120})$`),
		regexp.MustCompile(`(?im)^\s*(?:contracting\s+)?agency\s*[:\-]\s*(.{3,120})$`),
	},
	"prime": {
		regexp.MustCompile(`(?im)^\s*prime\s+contractor\s*[:\-]\s*(.{3,120})$`),
		regexp.MustCompile(`(?im)^\s*(?:general\s+)?contractor\s*[:\-]\s*(.{3,120})$`),
	},
}

// ExtractProjectMetadata scans labeled lines for the four required metadata
// fields. Missing fields stay empty; the validator decides whether that
// blocks the run.
func ExtractProjectMetadata(text string) Metadata {
	pick := func(key string) string {
		for _, re := range metadataPatterns[key] {
			if m := re.FindStringSubmatch(text); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
		return ""
	}
	return Metadata{
		ProjectName:     pick("name"),
		Location:        pick("location"),
		Owner:           pick("owner"),
		PrimeContractor: pick("prime"),
	}
}

// MergeTerms unions and canonicalizes term lists, sorted for stable output.
func MergeTerms(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 8)
	for _, list := range lists {
		for _, t := range list {
			c := CanonicalName(t)
			if c == "" {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
