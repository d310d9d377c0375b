package storage

import (
	"context"
	"fmt"
)

// ChunkRecord mirrors the chunks table. Section metadata comes from the
// heading-aware chunker; the embedding is a pgvector literal, nil until the
// embed step runs.
type ChunkRecord struct {
	ChunkID          string
	DocID            string
	ProjectID        string
	ChunkIndex       int
	Text             string
	SectionTitle     string
	SectionPath      string
	Division         string
	PageStart        *int
	PageEnd          *int
	EmbeddingVersion string
	EmbeddingVector  *string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) UpsertChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, doc_id, project_id, chunk_index, text,
                    section_title, section_path, division, page_start, page_end,
                    embedding_version, embedding)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), $9, $10, $11,
        CASE WHEN $12::text IS NULL THEN NULL ELSE $12::vector END)
ON CONFLICT (chunk_id)
DO UPDATE SET
  text = EXCLUDED.text,
  section_title = EXCLUDED.section_title,
  section_path = EXCLUDED.section_path,
  division = EXCLUDED.division,
  page_start = EXCLUDED.page_start,
  page_end = EXCLUDED.page_end,
  embedding_version = EXCLUDED.embedding_version,
  embedding = COALESCE(EXCLUDED.embedding, chunks.embedding)`,
			c.ChunkID, c.DocID, c.ProjectID, c.ChunkIndex, c.Text,
			c.SectionTitle, c.SectionPath, c.Division, c.PageStart, c.PageEnd,
			c.EmbeddingVersion, c.EmbeddingVector,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) CountChunksByDoc(ctx context.Context, docID string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE doc_id=$1`, docID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks by doc: %w", err)
	}
	return n, nil
}
