package storage

import (
	"context"
	"fmt"
)

// LLMCallRecord is one audit row per provider call (embedding or generation),
// written best-effort so audit failures never fail the pipeline.
type LLMCallRecord struct {
	CallID       string
	Operation    string
	ProjectID    string
	RunID        string
	ProviderName string
	Model        string
	RequestID    string
	Status       string
	ErrorType    string
}

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, project_id, run_id, provider_name, model, request_id, status, error_type)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,'')::uuid, NULLIF($4,'')::uuid, $5, $6, $7, $8, NULLIF($9,''))`,
		rec.CallID, rec.Operation, rec.ProjectID, rec.RunID, rec.ProviderName, rec.Model, rec.RequestID, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
