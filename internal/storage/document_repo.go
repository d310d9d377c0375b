package storage

import (
	"context"
	"fmt"

	"safeplan/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) UpsertDoc(ctx context.Context, d models.SourceDoc) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO source_docs (doc_id, project_id, filename, source_type, title, status, fail_reason)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, NULLIF($7,''))
ON CONFLICT (doc_id)
DO UPDATE SET
  project_id = EXCLUDED.project_id,
  filename = EXCLUDED.filename,
  source_type = EXCLUDED.source_type,
  title = COALESCE(EXCLUDED.title, source_docs.title),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		d.DocID, d.ProjectID, d.Filename, d.SourceType, d.Title, d.Status, d.FailReason)
	if err != nil {
		return fmt.Errorf("upsert source doc: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateDocStatus(ctx context.Context, docID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE source_docs SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE doc_id=$1`,
		docID, status, failReason)
	if err != nil {
		return fmt.Errorf("update source doc status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) ListDocsByProject(ctx context.Context, projectID string) ([]models.SourceDoc, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT doc_id, project_id::text, filename, source_type, COALESCE(title,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM source_docs
WHERE project_id=$1
ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list source docs: %w", err)
	}
	defer rows.Close()

	out := make([]models.SourceDoc, 0)
	for rows.Next() {
		var d models.SourceDoc
		if err := rows.Scan(&d.DocID, &d.ProjectID, &d.Filename, &d.SourceType, &d.Title, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source doc: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source docs: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) GetDocByID(ctx context.Context, docID string) (models.SourceDoc, error) {
	var d models.SourceDoc
	err := r.db.Pool.QueryRow(ctx, `
SELECT doc_id, project_id::text, filename, source_type, COALESCE(title,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM source_docs
WHERE doc_id=$1`, docID).
		Scan(&d.DocID, &d.ProjectID, &d.Filename, &d.SourceType, &d.Title, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.SourceDoc{}, fmt.Errorf("get source doc: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListFailedDocs(ctx context.Context, projectID string) ([]models.SourceDoc, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT doc_id, project_id::text, filename, source_type, COALESCE(title,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM source_docs
WHERE project_id=$1 AND status='failed'
ORDER BY updated_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list failed docs: %w", err)
	}
	defer rows.Close()
	out := make([]models.SourceDoc, 0)
	for rows.Next() {
		var d models.SourceDoc
		if err := rows.Scan(&d.DocID, &d.ProjectID, &d.Filename, &d.SourceType, &d.Title, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan failed doc: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
