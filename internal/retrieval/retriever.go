// Package retrieval builds section-scoped queries and turns raw vector-store
// rows into typed evidence chunks with provenance resolved once at this
// boundary.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"safeplan/internal/models"
	"safeplan/internal/sanitize"
	"safeplan/internal/sections"
	"safeplan/internal/vector"
)

const DefaultTopK = 6

// SearchClient is the vector-store oracle. *vector.Searcher satisfies it;
// tests inject fakes.
type SearchClient interface {
	SearchChunks(ctx context.Context, projectID string, queryVec []float32, topK int, filters vector.SearchFilters) ([]models.ChunkResult, error)
	KeywordSearchChunks(ctx context.Context, projectID string, terms []string, maxResults int) ([]models.ChunkResult, error)
}

// QueryEmbedder embeds one query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ReRanker re-orders candidates for diversity; implementations pick topK
// from the given pool.
type ReRanker interface {
	Rerank(query string, candidates []models.ChunkResult, topK int) []models.ChunkResult
}

type Retriever struct {
	search SearchClient
	embed  QueryEmbedder
	rerank ReRanker // nil disables MMR even when requested
}

func NewRetriever(search SearchClient, embed QueryEmbedder, rerank ReRanker) *Retriever {
	return &Retriever{search: search, embed: embed, rerank: rerank}
}

// RetrieveForSection returns up to topK evidence chunks for one section.
// Backend errors propagate; an empty result is not an error.
func (r *Retriever) RetrieveForSection(ctx context.Context, projectID string, def sections.SectionDefinition, pctx sections.ProjectContext, topK int, useMMR bool) ([]models.EvidenceChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	query := BuildQuery(def, pctx)

	queryVec, err := r.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed section query: %w", err)
	}

	pool := topK
	if useMMR {
		pool = topK * 4
	}
	vecHits, err := r.search.SearchChunks(ctx, projectID, queryVec, pool, vector.SearchFilters{})
	if err != nil {
		return nil, fmt.Errorf("vector search for section %s: %w", def.ID, err)
	}
	kwHits, err := r.search.KeywordSearchChunks(ctx, projectID, ReferenceTerms(def.EMRefs), topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search for section %s: %w", def.ID, err)
	}

	merged := mergeResults(vecHits, kwHits)
	merged = filterCandidates(merged)

	if len(merged) > topK {
		if useMMR && r.rerank != nil {
			window := 2 * topK
			if window > len(merged) {
				window = len(merged)
			}
			merged = r.rerank.Rerank(query, merged[:window], topK)
		} else {
			merged = merged[:topK]
		}
	}

	merged = enforceDominantSection(merged)

	out := make([]models.EvidenceChunk, 0, len(merged))
	for _, c := range merged {
		out = append(out, resolveChunk(c))
	}
	return out, nil
}

// BuildQuery concatenates the section intent, its top-3 keywords, up to 3
// work activities, up to 3 hazards, and the project name.
func BuildQuery(def sections.SectionDefinition, pctx sections.ProjectContext) string {
	parts := []string{def.Intent}
	parts = append(parts, headOf(def.Keywords, 3)...)
	parts = append(parts, headOf(pctx.Activities, 3)...)
	parts = append(parts, headOf(pctx.Hazards, 3)...)
	if strings.TrimSpace(pctx.ProjectName) != "" {
		parts = append(parts, pctx.ProjectName)
	}
	return strings.Join(parts, " ")
}

var refTokenRe = regexp.MustCompile(`[0-9]+|[A-Za-z]+`)

// ReferenceTerms splits regulatory references into searchable tokens,
// e.g. "01.A.13" becomes "01", "A", "13". The paragraph marker is dropped.
func ReferenceTerms(refs []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(refs)*3)
	for _, ref := range refs {
		for _, tok := range refTokenRe.FindAllString(ref, -1) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

// mergeResults keeps vector-result order and appends keyword hits not
// already present.
func mergeResults(vecHits, kwHits []models.ChunkResult) []models.ChunkResult {
	seen := map[string]struct{}{}
	out := make([]models.ChunkResult, 0, len(vecHits)+len(kwHits))
	for _, c := range vecHits {
		seen[c.ChunkID] = struct{}{}
		out = append(out, c)
	}
	for _, c := range kwHits {
		if _, dup := seen[c.ChunkID]; dup {
			continue
		}
		seen[c.ChunkID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// filterCandidates drops chunks tagged as TOC or boilerplate by the
// sanitizer, chunks without a recognizable source type, and chunks without a
// section-title tag, regardless of score.
func filterCandidates(in []models.ChunkResult) []models.ChunkResult {
	out := make([]models.ChunkResult, 0, len(in))
	for _, c := range in {
		text := c.ChunkText
		if text == "" {
			text = c.Snippet
		}
		if sanitize.LooksLikeTOC(text) || sanitize.LooksLikeBoilerplate(text) {
			continue
		}
		if c.SourceType != models.SourceTypeProject && c.SourceType != models.SourceTypeRegulation {
			continue
		}
		if strings.TrimSpace(c.SectionTitle) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// enforceDominantSection keeps only the most frequent section_title tag so
// one section's evidence pool never mixes unrelated document sections. If
// that would empty the result, the constraint is skipped: mixed evidence
// beats none.
func enforceDominantSection(in []models.ChunkResult) []models.ChunkResult {
	if len(in) == 0 {
		return in
	}
	counts := map[string]int{}
	for _, c := range in {
		counts[c.SectionTitle]++
	}
	dominant := in[0].SectionTitle
	best := 0
	for _, c := range in {
		if counts[c.SectionTitle] > best {
			best = counts[c.SectionTitle]
			dominant = c.SectionTitle
		}
	}
	out := make([]models.ChunkResult, 0, len(in))
	for _, c := range in {
		if c.SectionTitle == dominant {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return in
	}
	return out
}

// resolveChunk maps a raw store row into an EvidenceChunk, resolving page
// provenance once: page label, then page range, then single page number.
func resolveChunk(c models.ChunkResult) models.EvidenceChunk {
	out := models.EvidenceChunk{
		ChunkID:      c.ChunkID,
		Text:         c.ChunkText,
		SourceLabel:  c.SourceLabel,
		SourceType:   c.SourceType,
		SectionTitle: c.SectionTitle,
		SectionPath:  c.SectionPath,
		Division:     c.Division,
		Score:        c.Score,
	}
	if out.Text == "" {
		out.Text = c.Snippet
	}
	switch {
	case c.PageLabel != "":
		out.PageLabel = c.PageLabel
		out.PageNumber = c.PageStart
	case c.PageStart != nil && c.PageEnd != nil && *c.PageEnd != *c.PageStart:
		out.PageLabel = fmt.Sprintf("pp. %d-%d", *c.PageStart, *c.PageEnd)
		out.PageNumber = c.PageStart
	case c.PageStart != nil:
		out.PageLabel = fmt.Sprintf("p. %d", *c.PageStart)
		out.PageNumber = c.PageStart
	}
	return out
}

func headOf(items []string, n int) []string {
	if len(items) < n {
		n = len(items)
	}
	return items[:n]
}
