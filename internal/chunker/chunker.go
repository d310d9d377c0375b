// Package chunker splits sanitized text into token-bounded, overlapping
// chunks tagged with the heading path, page range, and division they fall
// under.
package chunker

import (
	"regexp"
	"strconv"
	"strings"
)

// PageMarker is the reserved token the text extractor embeds at page
// boundaries, e.g. "[[PAGE 12]]".
var pageMarkerRe = regexp.MustCompile(`^\[\[PAGE\s+(\d+)\]\]$`)

type Options struct {
	TargetTokens  int
	OverlapTokens int
	MinTokens     int
}

func DefaultOptions() Options {
	return Options{TargetTokens: 900, OverlapTokens: 100, MinTokens: 200}
}

// Chunk is one token-bounded slice of the document, in document order.
type Chunk struct {
	Text         string
	SectionTitle string
	HeadingPath  []string
	Division     string
	PageStart    int
	PageEnd      int
	TokenCount   int
}

type heading struct {
	title string
	level int
}

var headingPatterns = []struct {
	re    *regexp.Regexp
	level func(m []string) int
}{
	// Numbered sections: "1.4.2 Fall Protection"
	{regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+\S.*$`), func(m []string) int {
		return strings.Count(m[1], ".") + 1
	}},
	// "SECTION 01 35 26" / "Section 11"
	{regexp.MustCompile(`(?i)^section\s+[\d ]+.*$`), func([]string) int { return 1 }},
	// "DIVISION 3 - CONCRETE"
	{regexp.MustCompile(`(?i)^division\s+\d+.*$`), func([]string) int { return 1 }},
	// Roman-numeral parts: "IV. EXCAVATION"
	{regexp.MustCompile(`^(?:PART\s+)?[IVXLC]+\.\s+\S.*$`), func([]string) int { return 1 }},
	// Free-form all-caps short lines with at least two words.
	{regexp.MustCompile(`^[A-Z][A-Z0-9 ,&/\-()]{3,70}$`), func([]string) int { return 2 }},
}

var (
	divisionRe = regexp.MustCompile(`(?i)\bdivision\s+(\d+)`)
	sectionRe  = regexp.MustCompile(`(?i)\bsection\s+(\d[\d ]*)`)
)

// Split walks the text line by line and emits chunks in document order.
func Split(text string, opts Options) []Chunk {
	if opts.TargetTokens <= 0 {
		opts.TargetTokens = 900
	}
	if opts.MinTokens <= 0 {
		opts.MinTokens = 200
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}

	var (
		out      []Chunk
		stack    []heading
		buf      []string
		bufTok   int
		page     = 0
		chunkPg0 = 0
		overlap  []string
		fresh    bool
	)

	flush := func() {
		// A buffer holding nothing beyond the carried overlap duplicates the
		// tail of the chunk just emitted. Reset it without emitting.
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" && fresh {
			out = append(out, Chunk{
				Text:         body,
				SectionTitle: innermost(stack),
				HeadingPath:  path(stack),
				Division:     division(stack),
				PageStart:    chunkPg0,
				PageEnd:      page,
				TokenCount:   tokenCount(body),
			})
			if opts.OverlapTokens > 0 {
				overlap = trailingWords(body, opts.OverlapTokens)
			} else {
				overlap = nil
			}
		}
		buf = buf[:0]
		bufTok = 0
		fresh = false
		if len(overlap) > 0 {
			carried := strings.Join(overlap, " ")
			buf = append(buf, carried)
			bufTok = len(overlap)
		}
		chunkPg0 = page
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if m := pageMarkerRe.FindStringSubmatch(trimmed); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				page = n
				if chunkPg0 == 0 {
					chunkPg0 = n
				}
			}
			continue
		}

		if h, ok := matchHeading(trimmed); ok {
			// A heading always closes the running chunk, whatever its size.
			flush()
			for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, h)
			buf = append(buf, trimmed)
			bufTok += tokenCount(trimmed)
			fresh = true
			continue
		}

		buf = append(buf, line)
		bufTok += tokenCount(line)
		if tokenCount(line) > 0 {
			fresh = true
		}
		if bufTok >= opts.TargetTokens && bufTok >= opts.MinTokens {
			flush()
		}
	}
	flush()
	return out
}

func matchHeading(line string) (heading, bool) {
	if line == "" || tokenCount(line) == 0 {
		return heading{}, false
	}
	for i, p := range headingPatterns {
		m := p.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// All-caps heuristic needs at least two words and no long prose.
		if i == len(headingPatterns)-1 {
			if tokenCount(line) < 2 || tokenCount(line) > 10 {
				return heading{}, false
			}
		}
		return heading{title: line, level: p.level(m)}, true
	}
	return heading{}, false
}

func innermost(stack []heading) string {
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1].title
}

func path(stack []heading) []string {
	out := make([]string, 0, len(stack))
	for _, h := range stack {
		out = append(out, h.title)
	}
	return out
}

// division derives a "Division N" or "Section N" label from anywhere in the
// heading stack, outermost match wins.
func division(stack []heading) string {
	for _, h := range stack {
		if m := divisionRe.FindStringSubmatch(h.title); m != nil {
			return "Division " + m[1]
		}
	}
	for _, h := range stack {
		if m := sectionRe.FindStringSubmatch(h.title); m != nil {
			return "Section " + strings.TrimSpace(m[1])
		}
	}
	return ""
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}

func trailingWords(s string, n int) []string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return fields
	}
	return fields[len(fields)-n:]
}
