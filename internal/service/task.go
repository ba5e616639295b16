package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/taskhub/backend/internal/db"
	"github.com/taskhub/backend/internal/model"
)

const dateLayout = "2006-01-02"

type taskRepository interface {
	ListTasks(ctx context.Context, ownerID int64, f model.TaskFilter) ([]model.Task, error)
	CountTasks(ctx context.Context, ownerID int64, f model.TaskFilter) (int64, error)
	GetTask(ctx context.Context, id, ownerID int64) (*model.Task, error)
	CreateTask(ctx context.Context, ownerID int64, req model.TaskRequest, now time.Time) (int64, error)
	UpdateTask(ctx context.Context, id, ownerID int64, req model.TaskRequest, now time.Time) error
	DeleteTask(ctx context.Context, id, ownerID int64) error
	GetProject(ctx context.Context, id, ownerID int64) (*model.Project, error)
}

type TaskService struct {
	repo taskRepository
	now  func() time.Time
}

func NewTaskService(repo taskRepository) *TaskService {
	return &TaskService{repo: repo, now: time.Now}
}

// TaskQuery is the raw query string form of a task listing filter.
type TaskQuery struct {
	Status    string
	Priority  string
	ProjectID string
	StartDate string
	EndDate   string
	Search    string
}

// ParseTaskFilter validates q. Dates are calendar days in UTC and the end
// date is inclusive. A project id of "all" disables the project filter.
func ParseTaskFilter(q TaskQuery) (model.TaskFilter, error) {
	var f model.TaskFilter

	switch status := strings.TrimSpace(q.Status); status {
	case "", "all":
	case model.TaskStatusPending, model.TaskStatusInProgress, model.TaskStatusCompleted:
		f.Status = status
	default:
		return f, invalidf("invalid status %q", status)
	}

	switch priority := strings.TrimSpace(q.Priority); priority {
	case "", "all":
	case model.TaskPriorityLow, model.TaskPriorityMedium, model.TaskPriorityHigh:
		f.Priority = priority
	default:
		return f, invalidf("invalid priority %q", priority)
	}

	if raw := strings.TrimSpace(q.ProjectID); raw != "" && raw != "all" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return f, invalidf("invalid project_id")
		}
		f.ProjectID = &id
	}

	if raw := strings.TrimSpace(q.StartDate); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, invalidf("invalid start_date, expected YYYY-MM-DD")
		}
		f.From = &from
	}

	if raw := strings.TrimSpace(q.EndDate); raw != "" {
		end, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, invalidf("invalid end_date, expected YYYY-MM-DD")
		}
		until := end.AddDate(0, 0, 1)
		f.Until = &until
	}

	if f.From != nil && f.Until != nil && !f.From.Before(*f.Until) {
		return f, invalidf("start_date must not be after end_date")
	}

	f.Search = strings.TrimSpace(q.Search)
	return f, nil
}

func (s *TaskService) List(ctx context.Context, ownerID int64, f model.TaskFilter) ([]model.Task, error) {
	return s.repo.ListTasks(ctx, ownerID, f)
}

func (s *TaskService) Count(ctx context.Context, ownerID int64, f model.TaskFilter) (int64, error) {
	return s.repo.CountTasks(ctx, ownerID, f)
}

func (s *TaskService) Get(ctx context.Context, ownerID, id int64) (*model.Task, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	task, err := s.repo.GetTask(ctx, id, ownerID)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, ownerID int64, req model.TaskRequest) (*model.Task, error) {
	req, err := s.normalize(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}
	id, err := s.repo.CreateTask(ctx, ownerID, req, s.now())
	if err != nil {
		if req.ProjectID != nil && db.IsForeignKeyViolation(err) {
			// The project was deleted after the ownership check.
			return nil, invalidf("invalid project_id")
		}
		return nil, ownerGone(err)
	}
	return s.Get(ctx, ownerID, id)
}

func (s *TaskService) Update(ctx context.Context, ownerID, id int64, req model.TaskRequest) (*model.Task, error) {
	if id <= 0 {
		return nil, ErrNotFound
	}
	req, err := s.normalize(ctx, ownerID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTask(ctx, id, ownerID, req, s.now()); err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, ownerID, id)
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id int64) error {
	if id <= 0 {
		return ErrNotFound
	}
	return notFound(s.repo.DeleteTask(ctx, id, ownerID))
}

// normalize applies defaults and checks that a referenced project belongs to
// the caller.
func (s *TaskService) normalize(ctx context.Context, ownerID int64, req model.TaskRequest) (model.TaskRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return req, invalidf("task title is required")
	}

	req.Status = strings.TrimSpace(req.Status)
	switch req.Status {
	case "":
		req.Status = model.TaskStatusPending
	case model.TaskStatusPending, model.TaskStatusInProgress, model.TaskStatusCompleted:
	default:
		return req, invalidf("invalid task status %q", req.Status)
	}

	req.Priority = strings.TrimSpace(req.Priority)
	switch req.Priority {
	case "":
		req.Priority = model.TaskPriorityMedium
	case model.TaskPriorityLow, model.TaskPriorityMedium, model.TaskPriorityHigh:
	default:
		return req, invalidf("invalid task priority %q", req.Priority)
	}

	if req.DueDate != nil {
		due := strings.TrimSpace(*req.DueDate)
		if due == "" {
			req.DueDate = nil
		} else {
			if _, err := time.Parse(dateLayout, due); err != nil {
				return req, invalidf("invalid due_date, expected YYYY-MM-DD")
			}
			req.DueDate = &due
		}
	}

	if req.ProjectID != nil {
		if *req.ProjectID <= 0 {
			return req, invalidf("invalid project_id")
		}
		if _, err := s.repo.GetProject(ctx, *req.ProjectID, ownerID); err != nil {
			if db.IsNoRows(err) {
				return req, invalidf("invalid project_id")
			}
			return req, err
		}
	}

	return req, nil
}
