package db

import (
	"context"
	"time"

	"github.com/taskhub/backend/internal/model"
)

const projectColumns = `id, name, description, status, user_id, created_at, updated_at`

func (db *Store) ListProjects(ctx context.Context, ownerID int64) ([]model.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := db.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (db *Store) GetProject(ctx context.Context, id, ownerID int64) (*model.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE id = $1 AND user_id = $2
	`
	var p model.Project
	err := db.DB.QueryRowContext(ctx, query, id, ownerID).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.UserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *Store) CreateProject(ctx context.Context, ownerID int64, req model.ProjectRequest, now time.Time) (*model.Project, error) {
	now = timestamp(now)
	query := `
		INSERT INTO projects (name, description, status, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	p := model.Project{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		UserID:      ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := db.DB.QueryRowContext(ctx, query, p.Name, p.Description, p.Status, ownerID, now, now).Scan(&p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject is a single statement scoped by id and owner; sql.ErrNoRows
// means nothing matched.
func (db *Store) UpdateProject(ctx context.Context, id, ownerID int64, req model.ProjectRequest, now time.Time) error {
	query := `
		UPDATE projects
		SET name = $1, description = $2, status = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
	`
	res, err := db.DB.ExecContext(ctx, query, req.Name, req.Description, req.Status, timestamp(now), id, ownerID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (db *Store) DeleteProject(ctx context.Context, id, ownerID int64) error {
	res, err := db.DB.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
