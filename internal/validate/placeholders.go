package validate

import (
	"regexp"
	"strings"
)

// Placeholder token grammar. A resolved-value placeholder is wrapped as
// «PLACEHOLDER: text»; everything below counts as an unresolved token and
// blocks export.
var (
	wrappedPlaceholderRe = regexp.MustCompile(`«PLACEHOLDER:[^»]*»`)
	doubleBraceRe        = regexp.MustCompile(`\{\{[^}]*\}\}`)
	reservedBraceRe      = regexp.MustCompile(`\{(project_[a-z0-9_]*|ssho[a-z0-9_]*|pm[a-z0-9_]*|quality[a-z0-9_]*)\}`)
	underscoreRunRe      = regexp.MustCompile(`_{4,}`)
)

// FindPlaceholders returns every unresolved placeholder token in text, in
// order of appearance: wrapped placeholders, double-brace tokens, reserved
// single-brace tokens, stray unpaired braces, and 4+ underscore runs.
func FindPlaceholders(text string) []string {
	found := make([]string, 0, 2)

	found = append(found, wrappedPlaceholderRe.FindAllString(text, -1)...)
	stripped := wrappedPlaceholderRe.ReplaceAllString(text, "")

	found = append(found, doubleBraceRe.FindAllString(stripped, -1)...)
	stripped = doubleBraceRe.ReplaceAllString(stripped, "")

	found = append(found, reservedBraceRe.FindAllString(stripped, -1)...)
	stripped = reservedBraceRe.ReplaceAllString(stripped, "")

	// Any brace still present is stray.
	if i := strings.IndexAny(stripped, "{}"); i >= 0 {
		found = append(found, string(stripped[i]))
	}

	found = append(found, underscoreRunRe.FindAllString(stripped, -1)...)
	return found
}

// HasPlaceholder reports whether text contains any unresolved token.
func HasPlaceholder(text string) bool {
	return len(FindPlaceholders(text)) > 0
}
