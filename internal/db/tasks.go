package db

import (
	"context"
	"strings"
	"time"

	"github.com/taskhub/backend/internal/model"
)

const taskSelect = `
	SELECT
		t.id, t.title, t.description, t.status, t.priority,
		t.project_id, p.name, t.user_id, t.due_date,
		t.created_at, t.updated_at, t.completed_at
	FROM tasks t
	LEFT JOIN projects p ON p.id = t.project_id AND p.user_id = t.user_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.ProjectID,
		&t.ProjectName,
		&t.UserID,
		&t.DueDate,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// likeEscaper makes the search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// taskWhere builds the owner-scoped WHERE clause shared by list and count.
func taskWhere(ownerID int64, f model.TaskFilter, args *queryArgs) string {
	clauses := []string{"t.user_id = " + args.add(ownerID)}

	if f.Status != "" {
		clauses = append(clauses, "t.status = "+args.add(f.Status))
	}
	if f.Priority != "" {
		clauses = append(clauses, "t.priority = "+args.add(f.Priority))
	}
	if f.ProjectID != nil {
		clauses = append(clauses, "t.project_id = "+args.add(*f.ProjectID))
	}
	if f.From != nil {
		clauses = append(clauses, "t.created_at >= "+args.add(timestamp(*f.From)))
	}
	if f.Until != nil {
		clauses = append(clauses, "t.created_at < "+args.add(timestamp(*f.Until)))
	}
	if f.Search != "" {
		term := "%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%"
		clauses = append(clauses, "(LOWER(t.title) LIKE "+args.add(term)+" ESCAPE '\\' OR LOWER(t.description) LIKE "+args.add(term)+" ESCAPE '\\')")
	}

	return " WHERE " + strings.Join(clauses, " AND ")
}

func (db *Store) ListTasks(ctx context.Context, ownerID int64, f model.TaskFilter) ([]model.Task, error) {
	args := &queryArgs{}
	query := taskSelect + taskWhere(ownerID, f, args) + " ORDER BY t.created_at DESC, t.id DESC"

	rows, err := db.DB.QueryContext(ctx, query, args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

func (db *Store) CountTasks(ctx context.Context, ownerID int64, f model.TaskFilter) (int64, error) {
	args := &queryArgs{}
	query := "SELECT COUNT(*) FROM tasks t" + taskWhere(ownerID, f, args)

	var count int64
	if err := db.DB.QueryRowContext(ctx, query, args.values...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (db *Store) GetTask(ctx context.Context, id, ownerID int64) (*model.Task, error) {
	query := taskSelect + ` WHERE t.id = $1 AND t.user_id = $2`
	return scanTask(db.DB.QueryRowContext(ctx, query, id, ownerID))
}

func (db *Store) CreateTask(ctx context.Context, ownerID int64, req model.TaskRequest, now time.Time) (int64, error) {
	now = timestamp(now)
	var completedAt *time.Time
	if req.Status == model.TaskStatusCompleted {
		completedAt = &now
	}

	query := `
		INSERT INTO tasks (
			title, description, status, priority, project_id,
			user_id, due_date, created_at, updated_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	var id int64
	err := db.DB.QueryRowContext(ctx, query,
		req.Title,
		req.Description,
		req.Status,
		req.Priority,
		req.ProjectID,
		ownerID,
		req.DueDate,
		now,
		now,
		completedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateTask is a single statement scoped by id and owner. completed_at is
// stamped the first time the task becomes completed and cleared otherwise.
func (db *Store) UpdateTask(ctx context.Context, id, ownerID int64, req model.TaskRequest, now time.Time) error {
	query := `
		UPDATE tasks
		SET
			title = $1,
			description = $2,
			status = $3,
			priority = $4,
			project_id = $5,
			due_date = $6,
			updated_at = $7,
			completed_at = CASE WHEN $8 = 'completed' THEN COALESCE(completed_at, $9) ELSE NULL END
		WHERE id = $10 AND user_id = $11
	`
	now = timestamp(now)
	res, err := db.DB.ExecContext(ctx, query,
		req.Title,
		req.Description,
		req.Status,
		req.Priority,
		req.ProjectID,
		req.DueDate,
		now,
		req.Status,
		now,
		id,
		ownerID,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (db *Store) DeleteTask(ctx context.Context, id, ownerID int64) error {
	res, err := db.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return expectAffected(res)
}
