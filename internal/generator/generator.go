// Package generator turns retrieved evidence into composed section text in
// two strictly sequenced steps: extract verbatim evidence bullets, then
// compose fixed-role paragraphs exclusively from those bullets. Every gate
// failure is a deterministic transition to InsufficientEvidence, never an
// error; only retrieval-backend failures propagate.
package generator

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"safeplan/internal/contamination"
	"safeplan/internal/models"
	"safeplan/internal/sections"
	"safeplan/internal/util"
)

const (
	// MaxEvidenceCount caps the bullets carried into composition.
	MaxEvidenceCount = 6
	// MinEvidenceCount is hard gate 1: fewer bullets means the sentinel.
	MinEvidenceCount = 3
	// MinProjectBullets is hard gate 3: a section must be grounded in
	// project material, not the regulation alone.
	MinProjectBullets = 2

	maxSentencesPerChunk = 3
	minSentenceChars     = 20
	maxSentenceWords     = 50
	bulletWordLimit      = 40
	maxReferenceTokens   = 5
)

// SectionRetriever is the evidence source; *retrieval.Retriever satisfies it.
type SectionRetriever interface {
	RetrieveForSection(ctx context.Context, projectID string, def sections.SectionDefinition, pctx sections.ProjectContext, topK int, useMMR bool) ([]models.EvidenceChunk, error)
}

type Generator struct {
	retriever SectionRetriever
	guard     contamination.Guard

	// backendLive is hard gate 2: without a live generation backend the
	// generator refuses to compose text at all.
	backendLive bool
}

func New(retriever SectionRetriever, backendLive bool) *Generator {
	return &Generator{retriever: retriever, backendLive: backendLive}
}

// leadInRe matches generic lead-in sentences that carry no section-specific
// content.
var leadInRe = regexp.MustCompile(`(?i)^\s*(this\b|see also\b|note that\b)`)

// regulationLabelRe marks the regulatory corpus source-label family.
var regulationLabelRe = regexp.MustCompile(`(?i)\bEM\s*385\b`)

// ExtractEvidence is Step A: retrieve chunks, pick up to three key sentences
// per chunk, dedup across chunks, and truncate each to its first 40 words.
// The truncation is what keeps bullets verbatim-derived rather than
// paraphrased.
func (g *Generator) ExtractEvidence(ctx context.Context, projectID string, def sections.SectionDefinition, pctx sections.ProjectContext) ([]models.ExtractedEvidence, error) {
	chunks, err := g.retriever.RetrieveForSection(ctx, projectID, def, pctx, MaxEvidenceCount, true)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence for section %s: %w", def.ID, err)
	}

	seen := map[string]struct{}{}
	out := make([]models.ExtractedEvidence, 0, MaxEvidenceCount)
	for _, chunk := range chunks {
		for _, sentence := range keySentences(chunk.Text, g.guard) {
			key := util.NormalizeKey(sentence)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, models.ExtractedEvidence{
				ChunkID:     chunk.ChunkID,
				Text:        util.TruncateWords(sentence, bulletWordLimit),
				SourceLabel: chunk.SourceLabel,
				PageRef:     chunk.PageLabel,
				SectionRef:  chunk.SectionPath,
			})
			if len(out) >= MaxEvidenceCount {
				return out, nil
			}
		}
	}
	return out, nil
}

// keySentences picks the longest qualifying sentences of a chunk, up to
// three, as a proxy for specificity.
func keySentences(text string, guard contamination.Guard) []string {
	candidates := make([]string, 0, 8)
	for _, s := range util.SplitSentences(text) {
		if len(s) < minSentenceChars || util.WordCount(s) > maxSentenceWords {
			continue
		}
		if leadInRe.MatchString(s) {
			continue
		}
		if len(guard.Detect(s)) > 0 {
			continue
		}
		candidates = append(candidates, s)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})
	if len(candidates) > maxSentencesPerChunk {
		candidates = candidates[:maxSentencesPerChunk]
	}
	return candidates
}

// ComposeSection is Step B. It either returns the fixed-role paragraphs or
// the sentinel; it never errors and never emits unsourced prose.
func (g *Generator) ComposeSection(def sections.SectionDefinition, bullets []models.ExtractedEvidence, regulatoryRefs []string) []string {
	if len(bullets) < MinEvidenceCount {
		return []string{models.InsufficientEvidenceSentinel}
	}
	if !g.backendLive {
		return []string{models.InsufficientEvidenceSentinel}
	}
	project := 0
	for _, b := range bullets {
		if !IsRegulationSource(b.SourceLabel) {
			project++
		}
	}
	if project < MinProjectBullets {
		return []string{models.InsufficientEvidenceSentinel}
	}

	roles := []struct {
		label string
		lo    int
		hi    int // exclusive; -1 means rest
	}{
		{"Purpose", 0, 1},
		{"Procedures/Policy/Requirements", 1, 3},
		{"Responsibilities", 3, 5},
		{"Forms/Logs/Records", 5, -1},
	}

	paragraphs := make([]string, 0, len(roles)+1)
	for _, role := range roles {
		hi := role.hi
		if hi < 0 || hi > len(bullets) {
			hi = len(bullets)
		}
		slice := []models.ExtractedEvidence{}
		if role.lo < len(bullets) && role.lo < hi {
			slice = bullets[role.lo:hi]
		}
		// A role with no dedicated bullets re-cites the last bullet so
		// every paragraph stays evidence-bearing.
		if len(slice) == 0 {
			slice = bullets[len(bullets)-1:]
		}
		rendered := make([]string, 0, len(slice))
		for _, b := range slice {
			rendered = append(rendered, renderBullet(b))
		}
		paragraphs = append(paragraphs, role.label+": "+strings.Join(rendered, " "))
	}

	paragraphs = append(paragraphs, referencesParagraph(regulatoryRefs, bullets))
	return paragraphs
}

// renderBullet emits one bullet as exactly one sentence: the verbatim text,
// the chunk id, and the page marker, with the terminal period last so the
// contamination pass sees bullet and citation as a single grounded sentence.
func renderBullet(b models.ExtractedEvidence) string {
	page := b.PageRef
	if page == "" {
		page = b.SourceLabel
	}
	page = strings.NewReplacer(". ", " ", ".", " ").Replace(page)
	page = strings.Join(strings.Fields(page), " ")
	text := strings.TrimRight(strings.TrimSpace(b.Text), ".!? ")
	return fmt.Sprintf("%s [%s] (%s).", text, b.ChunkID, page)
}

// referencesParagraph lists up to 5 deduplicated, normalized regulatory
// tokens plus every evidence chunk identifier used.
func referencesParagraph(refs []string, bullets []models.ExtractedEvidence) string {
	tokens := NormalizeReferences(refs)
	if len(tokens) > maxReferenceTokens {
		tokens = tokens[:maxReferenceTokens]
	}

	seen := map[string]struct{}{}
	chunkIDs := make([]string, 0, len(bullets))
	for _, b := range bullets {
		if _, dup := seen[b.ChunkID]; dup {
			continue
		}
		seen[b.ChunkID] = struct{}{}
		chunkIDs = append(chunkIDs, b.ChunkID)
	}

	var b strings.Builder
	b.WriteString("References: EM 385-1-1 ")
	b.WriteString(strings.Join(tokens, "; "))
	b.WriteString(". Evidence: ")
	b.WriteString(strings.Join(chunkIDs, ", "))
	b.WriteString(".")
	return b.String()
}

// NormalizeReferences trims section markers and whitespace and dedups
// case-insensitively, preserving first-seen order.
func NormalizeReferences(refs []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "§"))
		if ref == "" {
			continue
		}
		key := strings.ToLower(ref)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref)
	}
	return out
}

// IsRegulationSource reports whether a source label belongs to the EM 385
// regulatory corpus family.
func IsRegulationSource(label string) bool {
	return regulationLabelRe.MatchString(label)
}

// GenerateSection runs the full per-section state machine. The returned
// result is immutable; the error return carries only retrieval failures.
func (g *Generator) GenerateSection(ctx context.Context, projectID string, def sections.SectionDefinition, pctx sections.ProjectContext) (models.SectionGenerationResult, error) {
	result := models.SectionGenerationResult{SectionID: def.ID, State: models.StateNotStarted}

	bullets, err := g.ExtractEvidence(ctx, projectID, def, pctx)
	if err != nil {
		return result, err
	}
	result.Evidence = bullets
	result.State = models.StateEvidenceExtracted

	paragraphs := g.ComposeSection(def, bullets, def.EMRefs)
	if len(paragraphs) == 1 && paragraphs[0] == models.InsufficientEvidenceSentinel {
		result.Text = models.InsufficientEvidenceSentinel
		result.Insufficient = true
		result.State = models.StateInsufficientEvidence
		return result, nil
	}
	result.State = models.StateComposed

	// Contamination pass over the role paragraphs; the references paragraph
	// is mechanical and stays as composed.
	grounding := make([]string, 0, len(bullets))
	for _, b := range bullets {
		grounding = append(grounding, b.Text)
	}
	removed := 0
	body := make([]string, 0, len(paragraphs))
	for _, para := range paragraphs[:len(paragraphs)-1] {
		cleaned, n := g.guard.Filter(para, grounding, contamination.DefaultMinOverlap)
		removed += n
		if strings.TrimSpace(cleaned) != "" {
			body = append(body, cleaned)
		}
	}
	result.RemovedSentences = removed
	result.State = models.StateContaminationChecked

	if len(body) == 0 {
		result.Text = models.InsufficientEvidenceSentinel
		result.Insufficient = true
		result.State = models.StateInsufficientEvidence
		return result, nil
	}

	body = append(body, paragraphs[len(paragraphs)-1])
	result.Text = strings.Join(body, "\n\n")
	result.Citations = buildCitations(bullets)
	result.State = models.StateAccepted
	return result, nil
}

// buildCitations derives one citation per evidence bullet.
func buildCitations(bullets []models.ExtractedEvidence) []models.Citation {
	out := make([]models.Citation, 0, len(bullets))
	for _, b := range bullets {
		out = append(out, models.Citation{
			SectionPath: b.SectionRef,
			PageLabel:   b.PageRef,
			QuoteAnchor: util.TruncateWords(b.Text, 8),
			SourceLabel: b.SourceLabel,
			ChunkID:     b.ChunkID,
		})
	}
	return out
}
