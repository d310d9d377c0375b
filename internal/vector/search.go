package vector

import (
	"context"
	"fmt"
	"strings"

	"safeplan/internal/models"

	"github.com/jackc/pgx/v5"
)

type SearchFilters struct {
	DocIDs           []string
	SourceType       string
	EmbeddingVersion string
}

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

const resultColumns = `
SELECT c.chunk_id,
       c.doc_id,
       d.filename,
       d.source_type,
       COALESCE(d.title, d.filename) AS source_label,
       COALESCE(c.section_title, '') AS section_title,
       COALESCE(c.section_path, '') AS section_path,
       COALESCE(c.division, '') AS division,
       c.page_start,
       c.page_end,
       LEFT(c.text, 420) AS snippet,
       %s AS score,
       c.text
FROM chunks c
JOIN source_docs d ON d.doc_id = c.doc_id`

// SearchChunks runs a pgvector similarity query scoped to one project's
// collection (project chunks plus the shared regulatory corpus).
func (s *Searcher) SearchChunks(ctx context.Context, projectID string, queryVec []float32, topK int, filters SearchFilters) ([]models.ChunkResult, error) {
	if topK <= 0 {
		topK = 8
	}
	vecLiteral := ToLiteral(queryVec)
	args := []any{projectID, vecLiteral, topK}

	filterSQL := ""
	if len(filters.DocIDs) > 0 {
		args = append(args, filters.DocIDs)
		filterSQL += fmt.Sprintf(" AND c.doc_id = ANY($%d)", len(args))
	}
	if strings.TrimSpace(filters.SourceType) != "" {
		args = append(args, filters.SourceType)
		filterSQL += fmt.Sprintf(" AND d.source_type = $%d", len(args))
	}
	if strings.TrimSpace(filters.EmbeddingVersion) != "" {
		args = append(args, filters.EmbeddingVersion)
		filterSQL += fmt.Sprintf(" AND c.embedding_version = $%d", len(args))
	}

	query := fmt.Sprintf(resultColumns, "1 - (c.embedding <=> $2::vector)") + `
WHERE c.project_id = $1
  AND c.embedding IS NOT NULL` + filterSQL + `
ORDER BY c.embedding <=> $2::vector
LIMIT $3`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows, topK)
}

// KeywordSearchChunks matches regulatory-reference tokens and section
// keywords with ILIKE. Scores are term-hit counts normalized to (0,1) so
// keyword hits always rank below a same-position vector hit when merged.
func (s *Searcher) KeywordSearchChunks(ctx context.Context, projectID string, terms []string, maxResults int) ([]models.ChunkResult, error) {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, "%"+t+"%")
		}
	}
	if len(cleaned) == 0 {
		return []models.ChunkResult{}, nil
	}
	if maxResults <= 0 {
		maxResults = 8
	}

	score := `(SELECT COUNT(*) FROM unnest($2::text[]) term WHERE c.text ILIKE term)::float / (array_length($2::text[], 1) + 1)`
	query := fmt.Sprintf(resultColumns, score) + `
WHERE c.project_id = $1
  AND c.text ILIKE ANY($2::text[])
ORDER BY score DESC, c.chunk_id
LIMIT $3`

	rows, err := s.q.Query(ctx, query, projectID, cleaned, maxResults)
	if err != nil {
		return nil, fmt.Errorf("query keyword search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows, maxResults)
}

func scanResults(rows pgx.Rows, capHint int) ([]models.ChunkResult, error) {
	results := make([]models.ChunkResult, 0, capHint)
	for rows.Next() {
		var r models.ChunkResult
		if err := rows.Scan(&r.ChunkID, &r.DocID, &r.Filename, &r.SourceType, &r.SourceLabel,
			&r.SectionTitle, &r.SectionPath, &r.Division, &r.PageStart, &r.PageEnd,
			&r.Snippet, &r.Score, &r.ChunkText); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
