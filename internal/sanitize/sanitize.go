// Package sanitize strips page chrome, tables of contents, and procurement
// boilerplate from raw extracted text before it is indexed or analyzed.
package sanitize

import (
	"regexp"
	"strings"

	"safeplan/internal/util"
)

var (
	tocHeaderRe   = regexp.MustCompile(`(?i)^\s*table\s+of\s+contents\s*$`)
	leaderDotsRe  = regexp.MustCompile(`\.{3,}\s*\d+\s*$`)
	shortNumberRe = regexp.MustCompile(`^\s*\d+(\.\d+)*\s+\S.{0,60}$`)

	pageNumOnlyRe = regexp.MustCompile(`^\s*-?\s*\d{1,4}\s*-?\s*$`)
	pageNofMRe    = regexp.MustCompile(`(?i)^\s*page\s+\d+(\s+of\s+\d+)?\s*$`)
	bannerRe      = regexp.MustCompile(`(?i)^\s*(confidential|proprietary|for official use only|draft)[\s.:!-]*$`)

	boilerplateRe = regexp.MustCompile(`(?i)(copyright\s|©|all rights reserved|subject to (the )?terms and conditions|request for proposal|invitation for bid|bid package|solicitation (no|number)|procurement sensitive)`)
)

const (
	minTOCBlock        = 5
	maxBoilerplateLen  = 300
	maxDedupLineLength = 60
)

// Sanitize cleans raw extracted text. It is pure and idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x). Empty input yields an empty string.
func Sanitize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	text := util.ScrubControlChars(raw)
	lines := strings.Split(text, "\n")

	// A removed line can bring previously separated lines together, e.g. a
	// dropped page footer merging two short contents runs into one block
	// large enough to drop. Repeat the passes until no line is removed; every
	// pass only deletes lines, so an unchanged length means a fixed point.
	for {
		next := dropTOCBlocks(lines)
		next = dropChromeLines(next)
		next = dropBoilerplateParagraphs(next)
		next = dedupShortLines(next)
		next = collapseBlankRuns(next)
		if len(next) == len(lines) {
			lines = next
			break
		}
		lines = next
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// LooksLikeTOC reports whether a passage reads like table-of-contents
// content. Used by the retriever to exclude chunks that slipped through
// upstream sanitization (scanned or re-OCR'd sources).
func LooksLikeTOC(text string) bool {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return false
	}
	matches := 0
	for _, line := range lines {
		if tocHeaderRe.MatchString(line) {
			return true
		}
		if isTOCLine(line) {
			matches++
		}
	}
	return float64(matches)/float64(len(lines)) >= 0.4
}

// LooksLikeBoilerplate reports whether a passage is short procurement or
// legal boilerplate rather than substantive content.
func LooksLikeBoilerplate(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	return len(trimmed) < maxBoilerplateLen && boilerplateRe.MatchString(trimmed)
}

func isTOCLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	return tocHeaderRe.MatchString(trimmed) ||
		leaderDotsRe.MatchString(trimmed) ||
		shortNumberRe.MatchString(trimmed)
}

func dropTOCBlocks(lines []string) []string {
	out := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		if !isTOCLine(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}
		j := i
		for j < len(lines) && isTOCLine(lines[j]) {
			j++
		}
		if j-i >= minTOCBlock {
			i = j
			continue
		}
		out = append(out, lines[i:j]...)
		i = j
	}
	return out
}

func dropChromeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if pageNumOnlyRe.MatchString(trimmed) || pageNofMRe.MatchString(trimmed) || bannerRe.MatchString(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dropBoilerplateParagraphs(lines []string) []string {
	out := make([]string, 0, len(lines))
	para := make([]string, 0, 8)

	flush := func() {
		if len(para) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(para, "\n"))
		if !LooksLikeBoilerplate(joined) {
			out = append(out, para...)
		}
		para = para[:0]
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			out = append(out, line)
			continue
		}
		para = append(para, line)
	}
	flush()
	return out
}

// dedupShortLines removes repeated short lines anywhere in the document, a
// proxy for running headers and footers the extractor repeated per page.
func dedupShortLines(lines []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		key := util.NormalizeKey(line)
		if key == "" || len(key) > maxDedupLineLength {
			out = append(out, line)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

// collapseBlankRuns reduces runs of 3+ blank lines to exactly one blank line.
func collapseBlankRuns(lines []string) []string {
	out := make([]string, 0, len(lines))
	blanks := 0
	flushBlanks := func() {
		if blanks >= 3 {
			blanks = 1
		}
		if len(out) > 0 {
			for k := 0; k < blanks; k++ {
				out = append(out, "")
			}
		}
		blanks = 0
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			continue
		}
		flushBlanks()
		out = append(out, line)
	}
	return out
}

func nonEmptyLines(text string) []string {
	out := make([]string, 0, 16)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
