package storage

import (
	"context"
	"fmt"

	"safeplan/internal/models"
)

type ProjectRepo struct {
	db *DB
}

func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

func (r *ProjectRepo) CreateProject(ctx context.Context, p models.Project) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO projects (project_id, name, location, owner, prime_contractor)
VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''))`,
		p.ProjectID, p.Name, p.Location, p.Owner, p.PrimeContractor)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// UpdateMetadata fills project fields discovered during ingest without
// clobbering values that were set explicitly at creation.
func (r *ProjectRepo) UpdateMetadata(ctx context.Context, projectID string, meta models.MetadataState) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE projects SET
  name = COALESCE(NULLIF(name,''), NULLIF($2,'')),
  location = COALESCE(location, NULLIF($3,'')),
  owner = COALESCE(owner, NULLIF($4,'')),
  prime_contractor = COALESCE(prime_contractor, NULLIF($5,''))
WHERE project_id = $1`,
		projectID, meta.ProjectName, meta.Location, meta.Owner, meta.PrimeContractor)
	if err != nil {
		return fmt.Errorf("update project metadata: %w", err)
	}
	return nil
}

func (r *ProjectRepo) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	var p models.Project
	err := r.db.Pool.QueryRow(ctx, `
SELECT project_id::text, name, COALESCE(location,''), COALESCE(owner,''), COALESCE(prime_contractor,''), created_at
FROM projects WHERE project_id = $1`, projectID).
		Scan(&p.ProjectID, &p.Name, &p.Location, &p.Owner, &p.PrimeContractor, &p.CreatedAt)
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepo) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT project_id::text, name, COALESCE(location,''), COALESCE(owner,''), COALESCE(prime_contractor,''), created_at
FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]models.Project, 0)
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ProjectID, &p.Name, &p.Location, &p.Owner, &p.PrimeContractor, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}
