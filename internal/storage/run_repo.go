package storage

import (
	"context"
	"fmt"

	"safeplan/internal/models"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, runID, projectID string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO plan_runs (run_id, project_id, status, export_blocked)
VALUES ($1, $2, 'pending', true)`, runID, projectID)
	if err != nil {
		return fmt.Errorf("create plan run: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateRun(ctx context.Context, runID, status string, exportBlocked bool, manifestPath string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE plan_runs SET status=$2, export_blocked=$3, manifest_path=NULLIF($4,'') WHERE run_id=$1`,
		runID, status, exportBlocked, manifestPath)
	if err != nil {
		return fmt.Errorf("update plan run: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (models.PlanRun, error) {
	var run models.PlanRun
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id::text, project_id::text, status, export_blocked, COALESCE(manifest_path,''), created_at
FROM plan_runs WHERE run_id=$1`, runID).
		Scan(&run.RunID, &run.ProjectID, &run.Status, &run.ExportBlocked, &run.ManifestPath, &run.CreatedAt)
	if err != nil {
		return models.PlanRun{}, fmt.Errorf("get plan run: %w", err)
	}
	return run, nil
}
